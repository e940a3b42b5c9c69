package model

import "testing"

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"pdf", "application/pdf", 2 * 1024 * 1024, false},
		{"jpeg", "image/jpeg", 1024, false},
		{"jpg alias", "image/jpg", 1024, false},
		{"png with params", "image/png; charset=binary", 1024, false},
		{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 1024, false},
		{"doc", "application/msword", 1024, false},
		{"exactly max", "application/pdf", MaxUploadSize, false},
		{"oversize", "application/pdf", 12 * 1024 * 1024, true},
		{"one byte over", "application/pdf", MaxUploadSize + 1, true},
		{"gif", "image/gif", 1024, true},
		{"text", "text/plain", 10, true},
		{"empty type", "", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.contentType, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpload(%q, %d) error = %v, wantErr %v", tt.contentType, tt.size, err, tt.wantErr)
			}
		})
	}
}
