// Package seqinfo inspects extracted DICOM trees and summarizes the series
// they contain. The summary drives the pre-conversion classification report
// and the file list handed to the conversion workflow.
package seqinfo

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"shanoir2bids/internal/logger"
)

// Series aggregates the DICOM files sharing one SeriesInstanceUID.
type Series struct {
	InstanceUID string
	Number      string
	Description string
	Files       int
}

// ID returns the identifier used when classifying the series: the series
// number when present, the instance UID otherwise.
func (s Series) ID() string {
	if s.Number != "" {
		return s.Number
	}
	return s.InstanceUID
}

// Report is the result of scanning one extraction directory.
type Report struct {
	Series []Series
	Files  []string
}

// Scan walks root for .dcm files, reading series metadata from each.
// Unreadable files are skipped; the conversion workflow re-reads
// everything anyway.
func Scan(root string) (Report, error) {
	var report Report
	byUID := make(map[string]int)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".dcm") {
			return nil
		}
		report.Files = append(report.Files, path)

		dataset, err := dicom.ParseFile(path, nil)
		if err != nil {
			logger.Debugf("skipping unreadable DICOM file %s: %v", path, err)
			return nil
		}
		uid := stringTag(&dataset, tag.SeriesInstanceUID)
		if uid == "" {
			return nil
		}
		if i, ok := byUID[uid]; ok {
			report.Series[i].Files++
			return nil
		}
		byUID[uid] = len(report.Series)
		report.Series = append(report.Series, Series{
			InstanceUID: uid,
			Number:      stringTag(&dataset, tag.SeriesNumber),
			Description: stringTag(&dataset, tag.SeriesDescription),
			Files:       1,
		})
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

func stringTag(dataset *dicom.Dataset, t tag.Tag) string {
	element, err := dataset.FindElementByTag(t)
	if err != nil {
		return ""
	}
	values := dicom.MustGetStrings(element.Value)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
