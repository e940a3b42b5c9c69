package service

import (
	"context"
	"strings"

	"github.com/hivedesk/onboarding/backend/model"
)

// MockAnalyzer returns canned findings without calling a model.
// File names containing "invalid" are rejected and "blurry" adds an issue,
// so every verdict can be exercised locally.
type MockAnalyzer struct{}

func (MockAnalyzer) Name() string { return "mock" }

func (MockAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.ToLower(in.Filename)
	valid := !strings.Contains(name, "invalid")
	f := &Finding{
		Valid:      &valid,
		Confidence: 0.95,
		Issues:     []string{},
		Fields:     mockFields(in.DocumentType),
	}
	if !valid {
		f.Confidence = 0.4
		f.Issues = append(f.Issues, "Document does not match the requested type")
	}
	if strings.Contains(name, "blurry") {
		f.Confidence = 0.6
		f.Issues = append(f.Issues, "Image is blurry")
	}
	return f, nil
}

func mockFields(t model.DocumentType) map[string]any {
	switch t {
	case model.TypePAN:
		return map[string]any{"name": "Test User", "pan_number": "ABCDE1234F", "dob": "01/01/1990", "father_name": "Test Parent"}
	case model.TypeAadhaar:
		return map[string]any{"name": "Test User", "aadhaar_number": "1234 5678 9012", "dob": "01/01/1990", "gender": "Other", "address": "1 Test Street"}
	case model.TypeResume:
		return map[string]any{"name": "Test User", "email": "test.user@example.com", "phone": "+91 98765 43210", "skills": []any{"go", "sql"}, "experience_years": float64(5)}
	case model.TypeOfferLetter:
		return map[string]any{"candidate_name": "Test User", "position": "Engineer", "joining_date": "01/07/2026"}
	case model.TypePFForm:
		return map[string]any{"employee_name": "Test User", "uan_number": "100200300400"}
	case model.TypePhoto:
		return map[string]any{"file_type": "jpg"}
	default:
		return map[string]any{"document_type_detected": string(t)}
	}
}
