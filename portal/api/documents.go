package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadDocument sends file as the "file" part with meta as the JSON
// "metadata" field
func (c *Client) UploadDocument(ctx context.Context, file File, meta Metadata) (UploadResult, error) {
	var result UploadResult

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return result, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("metadata", string(rawMeta)); err != nil {
		return result, err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return result, err
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return result, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return result, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/documents", &body)
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = c.doJSON(req, &result)
	return result, err
}

// AnalyzeDocument asks the backend to verify a stored document
func (c *Client) AnalyzeDocument(ctx context.Context, documentID string, meta Metadata) (Analysis, error) {
	var a Analysis
	err := c.sendJSON(ctx, http.MethodPost, documentPath(documentID, "analysis"), meta, &a)
	return a, err
}

// GetAnalysis returns the last verdict for a document
func (c *Client) GetAnalysis(ctx context.Context, documentID string) (Analysis, error) {
	var a Analysis
	err := c.sendJSON(ctx, http.MethodGet, documentPath(documentID, "analysis"), nil, &a)
	return a, err
}

func (c *Client) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var d Document
	err := c.sendJSON(ctx, http.MethodGet, documentPath(documentID), nil, &d)
	return d, err
}

// ListDocuments returns one page of the caller's documents, or everyone's for HR
func (c *Client) ListDocuments(ctx context.Context, page, pageSize int) (DocumentPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var p DocumentPage
	err := c.sendJSON(ctx, http.MethodGet, path, nil, &p)
	return p, err
}

// ReviewDocument records an HR decision: status is verified or rejected
func (c *Client) ReviewDocument(ctx context.Context, documentID, status, notes string) (Document, error) {
	var d Document
	in := map[string]string{"status": status, "notes": notes}
	err := c.sendJSON(ctx, http.MethodPost, documentPath(documentID, "verify"), in, &d)
	return d, err
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.sendJSON(ctx, http.MethodDelete, documentPath(documentID), nil, nil)
}

// DownloadDocument streams the stored file into w and returns the bytes written
func (c *Client) DownloadDocument(ctx context.Context, documentID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, documentPath(documentID, "download"), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var env envelope
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &env)
		return 0, newError(resp.StatusCode, env.Error)
	}
	return io.Copy(w, resp.Body)
}
