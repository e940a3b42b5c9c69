package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hivedesk/onboarding/portal/workflow"
)

// Office formats sniff as zip or octet-stream, so the extension wins.
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// openFile opens path for upload. The caller closes the returned file.
func openFile(path string) (workflow.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return workflow.File{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return workflow.File{}, nil, err
	}
	if info.IsDir() {
		f.Close()
		return workflow.File{}, nil, fmt.Errorf("%s is a directory", path)
	}

	contentType, err := detectContentType(f, path)
	if err != nil {
		f.Close()
		return workflow.File{}, nil, err
	}

	return workflow.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	}, f, nil
}

func detectContentType(f *os.File, path string) (string, error) {
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
