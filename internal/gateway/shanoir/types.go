package shanoir

import "net/http"

// Downloadable file types offered by Shanoir.
const (
	FileTypeNifti = "nifti"
	FileTypeDicom = "dicom"
)

// ValidFileType reports whether s names a downloadable file type.
func ValidFileType(s string) bool {
	return s == FileTypeNifti || s == FileTypeDicom
}

// Result is one dataset instance returned by the solr search.
type Result struct {
	ID          string
	DatasetID   int64
	DatasetName string
	StudyName   string
	SubjectName string
	ExamComment string
	ExamDate    string
}

// SearchResponse carries the raw status code so callers can apply the
// 200 / 204 / other taxonomy themselves.
type SearchResponse struct {
	Status int
	Items  []Result
}

// Found reports whether the search succeeded with content.
func (r *SearchResponse) Found() bool {
	return r != nil && r.Status == http.StatusOK
}

// Empty reports the "no matches" status.
func (r *SearchResponse) Empty() bool {
	return r != nil && r.Status == http.StatusNoContent
}
