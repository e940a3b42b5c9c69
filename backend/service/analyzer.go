package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hivedesk/onboarding/backend/model"
)

// AnalyzeInput is one document handed to an Analyzer
type AnalyzeInput struct {
	DocumentType model.DocumentType
	CustomName   string
	Filename     string
	MimeType     string
	PageCount    int
	Content      []byte
}

// Finding is the normalized model output before masking
type Finding struct {
	// Valid is nil when the model did not report validity
	Valid         *bool
	Confidence    float64
	Issues        []string
	MissingFields []string
	Fields        map[string]any
}

// Analyzer inspects a document and reports what it found
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*Finding, error)
	Name() string
}

var reservedKeys = map[string]bool{
	"confidence":     true,
	"issues":         true,
	"missing_fields": true,
	"extracted_data": true,
}

// ParseFinding decodes the JSON object returned by a model. Markdown code
// fences around the object are tolerated.
func ParseFinding(text string) (*Finding, error) {
	text = stripCodeFence(text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	f := &Finding{
		Confidence:    clamp01(number(raw["confidence"])),
		Issues:        stringList(raw["issues"]),
		MissingFields: stringList(raw["missing_fields"]),
		Fields:        make(map[string]any),
	}

	if extra, ok := raw["extracted_data"].(map[string]any); ok {
		for k, v := range extra {
			f.Fields[k] = v
		}
	}
	for k, v := range raw {
		if strings.HasPrefix(k, "is_valid") {
			if b, ok := v.(bool); ok {
				f.Valid = &b
			}
			continue
		}
		if !reservedKeys[k] {
			f.Fields[k] = v
		}
	}
	return f, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	default:
		return 0
	}
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Verdict turns a finding into a verification status and reviewer note.
// Only an explicitly valid, issue-free finding above threshold is verified;
// an explicitly invalid one is rejected; everything else waits for HR.
func Verdict(f *Finding, threshold float64) (model.VerificationStatus, string) {
	switch {
	case f.Valid != nil && !*f.Valid:
		if len(f.Issues) > 0 {
			return model.VerificationRejected, "AI: Rejected - " + joinFirst(f.Issues, 3)
		}
		return model.VerificationRejected, "AI: Document did not pass validation"
	case f.Valid != nil && f.Confidence > threshold && len(f.Issues) == 0:
		return model.VerificationVerified, "AI: Verified (high confidence)"
	case len(f.Issues) > 0:
		return model.VerificationPending, "AI: Needs review - " + joinFirst(f.Issues, 3)
	default:
		return model.VerificationPending, "AI: Processed successfully"
	}
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

// BuildAnalysis masks the finding and applies the verdict
func BuildAnalysis(doc *model.Document, f *Finding, threshold float64, now time.Time) *model.Analysis {
	status, notes := Verdict(f, threshold)
	masked := MaskDocumentData(f.Fields, doc.DocumentType)

	return &model.Analysis{
		DocumentID:         doc.ID,
		DocumentType:       doc.DocumentType,
		VerificationStatus: status,
		ConfidenceScore:    f.Confidence,
		ExtractedData:      FilterDisplayFields(masked, doc.DocumentType),
		Issues:             f.Issues,
		MissingFields:      f.MissingFields,
		AnalysisNotes:      notes,
		ProcessedAt:        now,
	}
}
