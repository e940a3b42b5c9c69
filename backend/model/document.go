package model

import (
	"fmt"
	"strings"
	"time"
)

// Document represents an uploaded onboarding document
type Document struct {
	ID                 string             `json:"id" gorm:"primaryKey;size:36"`
	EmployeeID         string             `json:"employee_id" gorm:"index;size:64"`
	DocumentType       DocumentType       `json:"document_type" gorm:"size:32"`
	CustomName         string             `json:"custom_name,omitempty" gorm:"size:255"`
	OriginalFilename   string             `json:"original_filename" gorm:"size:255"`
	ObjectName         string             `json:"-" gorm:"size:500"`
	FileSize           int64              `json:"file_size"`
	MimeType           string             `json:"mime_type" gorm:"size:100"`
	FileHash           string             `json:"-" gorm:"size:64;index"`
	PageCount          int                `json:"page_count,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"size:16;index"`
	VerificationNotes  string             `json:"verification_notes,omitempty"`
	VerifiedBy         string             `json:"verified_by,omitempty" gorm:"size:64"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	UploadedAt         time.Time          `json:"uploaded_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	// AI fields
	Analysis      *Analysis  `json:"ai_analysis,omitempty" gorm:"serializer:json"`
	AIConfidence  float64    `json:"confidence_score"`
	AIProcessedAt *time.Time `json:"ai_processed_at,omitempty"`
}

// DisplayName returns the custom name for custom documents, the filename otherwise
func (d *Document) DisplayName() string {
	if d.CustomName != "" {
		return d.CustomName
	}
	return d.OriginalFilename
}

// Analysis is the outcome of an AI verification run
type Analysis struct {
	DocumentID         string             `json:"document_id"`
	DocumentType       DocumentType       `json:"document_type"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ConfidenceScore    float64            `json:"confidence_score"`
	ExtractedData      map[string]any     `json:"extracted_data"`
	Issues             []string           `json:"issues"`
	MissingFields      []string           `json:"missing_fields,omitempty"`
	AnalysisNotes      string             `json:"analysis_notes"`
	ProcessedAt        time.Time          `json:"processed_at"`
}

// DocumentType is the backend document type enum
type DocumentType string

const (
	TypePAN            DocumentType = "pan"
	TypeAadhaar        DocumentType = "aadhaar"
	TypeResume         DocumentType = "resume"
	TypeOfferLetter    DocumentType = "offer_letter"
	TypePFForm         DocumentType = "pf_form"
	TypePhoto          DocumentType = "photo"
	TypeOther          DocumentType = "other"
	TypeCustomDocument DocumentType = "custom_document"
	TypeGeneral        DocumentType = "general"
)

var documentTypes = map[string]DocumentType{
	"pan":             TypePAN,
	"aadhaar":         TypeAadhaar,
	"aadhar":          TypeAadhaar,
	"resume":          TypeResume,
	"offer_letter":    TypeOfferLetter,
	"pf_form":         TypePFForm,
	"photo":           TypePhoto,
	"other":           TypeOther,
	"custom_document": TypeCustomDocument,
	"general":         TypeGeneral,
}

// ParseDocumentType normalizes a client supplied document type
func ParseDocumentType(s string) (DocumentType, error) {
	t, ok := documentTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid document type %q", s)
	}
	return t, nil
}

// VerificationStatus constants
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
	VerificationFailed   VerificationStatus = "failed"
)

// Reviewable reports whether HR may set a document to s
func (s VerificationStatus) Reviewable() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// Role constants
const (
	RoleHR       = "hr"
	RoleEmployee = "employee"
)
