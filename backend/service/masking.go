package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hivedesk/onboarding/backend/model"
)

var nonDigits = regexp.MustCompile(`\D`)

const (
	notProvided   = "Not provided"
	invalidFormat = "Invalid format"
)

// MaskAadhaar keeps the last four digits: "XXXX XXXX 9012"
func MaskAadhaar(aadhaar string) string {
	if aadhaar == "" {
		return notProvided
	}
	digits := nonDigits.ReplaceAllString(aadhaar, "")
	if len(digits) != 12 {
		return invalidFormat
	}
	return "XXXX XXXX " + digits[8:]
}

// MaskPAN keeps the last four characters: "XXXXX234F"
func MaskPAN(pan string) string {
	if pan == "" {
		return notProvided
	}
	pan = strings.ToUpper(strings.ReplaceAll(pan, " ", ""))
	if len(pan) != 10 {
		return invalidFormat
	}
	return "XXXXX" + pan[6:]
}

// MaskEmail keeps the first two characters of the local part and the domain
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return notProvided
	}
	if len(local) <= 2 {
		return local[:1] + "*@" + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + "@" + domain
}

// MaskPhone keeps the last four digits: "XXXXX X3210"
func MaskPhone(phone string) string {
	if phone == "" {
		return notProvided
	}
	digits := nonDigits.ReplaceAllString(phone, "")
	if len(digits) < 4 {
		return invalidFormat
	}
	return "XXXXX X" + digits[len(digits)-4:]
}

// MaskDocumentData returns a copy of data with identity numbers, phone and
// email masked. The unmasked numbers are not kept in the copy.
func MaskDocumentData(data map[string]any, docType model.DocumentType) map[string]any {
	masked := make(map[string]any, len(data)+1)
	for k, v := range data {
		masked[k] = v
	}

	switch docType {
	case model.TypeAadhaar:
		if v, ok := masked["aadhaar_number"]; ok {
			m := MaskAadhaar(stringOf(v))
			masked["aadhaar_number_masked"] = m
			masked["aadhaar_number"] = m
		}
	case model.TypePAN:
		if v, ok := masked["pan_number"]; ok {
			m := MaskPAN(stringOf(v))
			masked["pan_number_masked"] = m
			masked["pan_number"] = m
		}
	}

	if v, ok := masked["phone"]; ok {
		masked["phone"] = MaskPhone(stringOf(v))
	}
	if v, ok := masked["email"]; ok {
		masked["email"] = MaskEmail(stringOf(v))
	}
	return masked
}

var displayFields = map[model.DocumentType][]string{
	model.TypeAadhaar:     {"name", "aadhaar_number_masked", "dob", "gender", "address"},
	model.TypePAN:         {"name", "pan_number_masked", "dob", "father_name"},
	model.TypeResume:      {"name", "email", "phone", "education", "experience_years", "skills", "current_company"},
	model.TypeOfferLetter: {"candidate_name", "position", "salary", "joining_date", "department", "reporting_to"},
	model.TypePFForm:      {"employee_name", "uan_number", "pf_number", "previous_employer", "date_of_joining"},
	model.TypePhoto:       {"file_type", "uploaded_at"},
}

// DisplayFields lists the fields HR may see for a document type.
// Nil means no restriction.
func DisplayFields(docType model.DocumentType) []string {
	return displayFields[docType]
}

// FilterDisplayFields keeps only the HR-visible fields of masked data
func FilterDisplayFields(data map[string]any, docType model.DocumentType) map[string]any {
	fields := DisplayFields(docType)
	if fields == nil {
		return data
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := data[f]; ok {
			out[f] = v
		}
	}
	return out
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// JSON numbers; identity numbers never carry fractions
		return fmt.Sprintf("%.0f", s)
	default:
		return fmt.Sprint(s)
	}
}
