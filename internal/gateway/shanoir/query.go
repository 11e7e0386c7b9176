package shanoir

import "strings"

// SearchText builds the solr expert-mode query for one (subject, sequence)
// pair. All facets are combined with AND. Spaces inside the name facets are
// replaced by "?" (single-character wildcard) and spaces inside the
// examination comment by "*", matching how the Shanoir search tokenizes
// free text.
func SearchText(study, dataset, subject, sessionFilter, dateFrom, dateTo string) string {
	var b strings.Builder
	b.WriteString("studyName:")
	b.WriteString(escapeName(study))
	b.WriteString(" AND datasetName:")
	b.WriteString(escapeName(dataset))
	b.WriteString(" AND subjectName:")
	b.WriteString(escapeName(subject))
	b.WriteString(" AND examinationComment:")
	b.WriteString(escapeComment(sessionFilter))
	b.WriteString(" AND examinationDate:[")
	b.WriteString(dateFrom)
	b.WriteString(" TO ")
	b.WriteString(dateTo)
	b.WriteString("]")
	return b.String()
}

func escapeName(s string) string {
	return strings.ReplaceAll(s, " ", "?")
}

func escapeComment(s string) string {
	return strings.ReplaceAll(s, " ", "*")
}
