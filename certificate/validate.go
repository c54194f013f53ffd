package certificate

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// Validation constants.
const (
	MaxFieldLength = 256
)

func validateDisplayString(s, label string, required bool) error {
	if s == "" {
		if required {
			return validationErrorf("%s must not be empty", label)
		}
		return nil
	}
	if len(s) > MaxFieldLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxFieldLength)
	}
	if !utf8.ValidString(s) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}

// ValidateFields checks the signed field subset before issuance. Subject name
// and course title are required; cohort label and class are optional display
// strings; the issue date must be a calendar date in DateLayout form.
func ValidateFields(f Fields) error {
	if err := validateDisplayString(f.SubjectName, "subject name", true); err != nil {
		return err
	}
	if err := validateDisplayString(f.CourseTitle, "course title", true); err != nil {
		return err
	}
	if err := validateDisplayString(f.CohortLabel, "cohort label", false); err != nil {
		return err
	}
	if err := validateDisplayString(f.CertificateClass, "certificate class", false); err != nil {
		return err
	}
	if f.IssueDate == "" {
		return validationErrorf("issue date must not be empty")
	}
	if _, err := time.Parse(DateLayout, f.IssueDate); err != nil {
		return validationErrorf("issue date %q is not a valid %s date", f.IssueDate, DateLayout)
	}
	return nil
}
