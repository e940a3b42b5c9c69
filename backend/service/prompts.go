package service

import (
	"fmt"
	"strings"

	"github.com/hivedesk/onboarding/backend/model"
)

const systemInstruction = `You are a document verification assistant for HR onboarding.
Analyze documents and extract key information.
Be strict but fair. Flag genuine issues only.
Respond with a single JSON object and nothing else.`

// promptFields holds the JSON shape requested for each document type
var promptFields = map[model.DocumentType]struct {
	subject string
	shape   string
}{
	model.TypePAN: {"this PAN card", `{
  "is_valid_pan": true/false,
  "pan_number": "10-character PAN like ABCDE1234F",
  "name": "Full name as on card",
  "father_name": "Father's name if visible",
  "dob": "Date of birth in DD/MM/YYYY format",
  "missing_fields": ["list any critical missing data"],
  "issues": ["any validation issues found"],
  "confidence": 0.0-1.0,
  "extracted_data": {"any additional fields found"}
}`},
	model.TypeAadhaar: {"this Aadhaar card", `{
  "is_valid_aadhaar": true/false,
  "aadhaar_number": "12-digit Aadhaar number",
  "name": "Full name as on card",
  "dob": "Date of birth in DD/MM/YYYY format",
  "gender": "Male/Female/Other",
  "address": "Full address from card",
  "missing_fields": ["list any critical missing data"],
  "issues": ["any validation issues found"],
  "confidence": 0.0-1.0,
  "extracted_data": {"any additional fields found"}
}
Extract the full 12-digit Aadhaar number; it is masked before storage.`},
	model.TypeResume: {"this resume", `{
  "is_valid_resume": true/false,
  "name": "Candidate's full name",
  "email": "Email address",
  "phone": "Phone number",
  "skills": ["skill1", "skill2"],
  "experience_years": number,
  "education": "Highest qualification",
  "current_company": "Current/last company name",
  "missing_fields": ["list any critical missing data"],
  "issues": ["any validation issues found"],
  "confidence": 0.0-1.0,
  "extracted_data": {"certifications": [], "languages": []}
}`},
	model.TypeOfferLetter: {"this offer letter", `{
  "is_valid_offer": true/false,
  "candidate_name": "Candidate's name",
  "position": "Job title/position",
  "salary": "Annual CTC or monthly salary",
  "joining_date": "Date of joining in DD/MM/YYYY",
  "department": "Department name",
  "reporting_to": "Manager/reporting authority",
  "company_name": "Hiring company name",
  "missing_fields": ["list any critical missing data"],
  "issues": ["any validation issues found"],
  "confidence": 0.0-1.0,
  "extracted_data": {"location": "", "employment_type": ""}
}`},
	model.TypePFForm: {"this PF (Provident Fund) form", `{
  "is_valid_pf": true/false,
  "employee_name": "Employee's full name",
  "uan_number": "Universal Account Number (UAN)",
  "pf_number": "PF account number",
  "previous_employer": "Previous company name if any",
  "date_of_joining": "DOJ with previous employer",
  "missing_fields": ["list any critical missing data"],
  "issues": ["any validation issues found"],
  "confidence": 0.0-1.0,
  "extracted_data": {"nominee_name": "", "relationship": ""}
}`},
	model.TypePhoto: {"this employee photo", `{
  "is_valid_photo": true/false,
  "file_type": "jpg/png/etc",
  "quality": "good/acceptable/poor",
  "issues": ["any issues like blurry, inappropriate, etc"],
  "confidence": 0.0-1.0,
  "extracted_data": {"dimensions": ""}
}`},
}

const genericShape = `{
  "is_valid_document": true/false,
  "document_type_detected": "type if identifiable",
  "extracted_data": {},
  "missing_fields": [],
  "issues": [],
  "confidence": 0.0-1.0
}`

// BuildPrompt renders the user prompt for one document
func BuildPrompt(in AnalyzeInput) string {
	subject, shape := "this document", genericShape
	if p, ok := promptFields[in.DocumentType]; ok {
		subject, shape = p.subject, p.shape
	} else if in.CustomName != "" {
		subject = fmt.Sprintf("this document, which the employee labelled %q", in.CustomName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s and extract all fields.\n\n", subject)
	fmt.Fprintf(&b, "File: %s (%s", in.Filename, in.MimeType)
	if in.PageCount > 0 {
		fmt.Fprintf(&b, ", %d pages", in.PageCount)
	}
	b.WriteString(")\n")
	if !inlineSupported(in.MimeType) {
		b.WriteString("The file content could not be attached. Judge from the file name only and report low confidence.\n")
	}
	b.WriteString("\nReturn JSON with these exact fields:\n")
	b.WriteString(shape)
	return b.String()
}

// inlineSupported reports whether the model accepts the file bytes directly
func inlineSupported(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "application/pdf", "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}
