package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// column aliases accepted in CSV headers, lowercased.
var csvColumns = map[string]string{
	"subject_name":      "subject_name",
	"name":              "subject_name",
	"email":             "email",
	"course_title":      "course_title",
	"course":            "course_title",
	"cohort_label":      "cohort_label",
	"cohort":            "cohort_label",
	"certificate_class": "certificate_class",
	"class":             "certificate_class",
	"issue_date":        "issue_date",
	"date":              "issue_date",
}

// ParseCSV reads candidate rows from a headered CSV stream. Header names are
// case-insensitive and accept common aliases (name, course, cohort, class,
// date). Unknown columns are ignored; validation of the row contents happens
// later, in the batch run itself.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	fields := make(map[int]string, len(header))
	for i, col := range header {
		if canonical, ok := csvColumns[strings.ToLower(strings.TrimSpace(col))]; ok {
			fields[i] = canonical
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("CSV header has no recognized columns")
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", len(rows)+2, err)
		}
		var row Row
		for i, value := range record {
			value = strings.TrimSpace(value)
			switch fields[i] {
			case "subject_name":
				row.SubjectName = value
			case "email":
				row.Email = value
			case "course_title":
				row.CourseTitle = value
			case "cohort_label":
				row.CohortLabel = value
			case "certificate_class":
				row.CertificateClass = value
			case "issue_date":
				row.IssueDate = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
