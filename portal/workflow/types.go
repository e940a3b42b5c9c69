package workflow

import (
	"math"
	"time"

	"github.com/hivedesk/onboarding/portal/api"
)

// Status of a slot as shown to the employee
type Status string

const (
	StatusRequired Status = "required"
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
)

// File and Metadata are the upload payload types of the API client.
type (
	File     = api.File
	Metadata = api.Metadata
)

// Slot is one required or uploaded document.
type Slot struct {
	ID           string
	Name         string
	CustomName   string
	DocumentType string
	Custom       bool
	Status       Status
	FileName     string
	FileSize     int64
	UploadedAt   time.Time
	DocumentID   string
}

// DisplayName is the label shown for the slot
func (s Slot) DisplayName() string {
	if s.CustomName != "" {
		return s.CustomName
	}
	return s.Name
}

// Metadata is what accompanies an upload of this slot. Custom slots are
// sent as custom_document, untyped ones as general.
func (s Slot) Metadata() Metadata {
	if s.Custom {
		return Metadata{DocumentType: "custom_document", CustomName: s.DisplayName()}
	}
	if s.DocumentType == "" {
		return Metadata{DocumentType: "general"}
	}
	return Metadata{DocumentType: s.DocumentType}
}

// Analysis is the cached AI verdict for a slot.
type Analysis struct {
	SlotID             string
	DocumentID         string
	VerificationStatus string
	ConfidenceScore    float64
	ExtractedData      map[string]any
	Issues             []string
	AnalysisNotes      string
	DocumentType       string
	Metadata           Metadata
	AnalyzedAt         time.Time
}

// Percent returns the confidence as a whole percentage
func (a Analysis) Percent() int {
	return int(math.Round(a.ConfidenceScore * 100))
}

// Progress summarizes the slot list.
type Progress struct {
	Total    int
	Verified int
	Pending  int
	Required int
}

// Percent is the share of verified slots, 0 when there are none
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Verified * 100 / p.Total
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves everything, for non-interactive callers
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

func cloneAnalysis(a *Analysis) Analysis {
	out := *a
	if a.ExtractedData != nil {
		out.ExtractedData = make(map[string]any, len(a.ExtractedData))
		for k, v := range a.ExtractedData {
			out.ExtractedData[k] = v
		}
	}
	out.Issues = append([]string(nil), a.Issues...)
	return out
}
