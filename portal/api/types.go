package api

import (
	"io"
	"time"
)

// File is a local file to upload
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Metadata accompanies an upload and an analysis request
type Metadata struct {
	DocumentType string `json:"document_type"`
	CustomName   string `json:"custom_name,omitempty"`
}

// Analysis is the AI verdict for a document
type Analysis struct {
	DocumentID         string         `json:"document_id"`
	DocumentType       string         `json:"document_type"`
	VerificationStatus string         `json:"verification_status"`
	ConfidenceScore    float64        `json:"confidence_score"`
	ExtractedData      map[string]any `json:"extracted_data"`
	Issues             []string       `json:"issues"`
	MissingFields      []string       `json:"missing_fields,omitempty"`
	AnalysisNotes      string         `json:"analysis_notes"`
	ProcessedAt        time.Time      `json:"processed_at"`
}

// Document is the server record of an upload
type Document struct {
	DocumentID         string     `json:"document_id"`
	EmployeeID         string     `json:"employee_id"`
	DocumentType       string     `json:"document_type"`
	CustomName         string     `json:"custom_name,omitempty"`
	OriginalFilename   string     `json:"original_filename"`
	FileSize           int64      `json:"file_size"`
	MimeType           string     `json:"mime_type"`
	PageCount          int        `json:"page_count,omitempty"`
	VerificationStatus string     `json:"verification_status"`
	VerificationNotes  string     `json:"verification_notes,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	UploadedAt         time.Time  `json:"uploaded_at"`
	ConfidenceScore    float64    `json:"confidence_score"`
	AIAnalysis         *Analysis  `json:"ai_analysis,omitempty"`
}

// UploadResult is what the upload call returns
type UploadResult = Document

// DocumentPage is one page of a document listing
type DocumentPage struct {
	Documents []Document `json:"documents"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// User is the identity behind a session
type User struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
}
