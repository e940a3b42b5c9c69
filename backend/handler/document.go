package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/middleware"
	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/backend/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// UploadMetadata is the JSON "metadata" form field sent with an upload
type UploadMetadata struct {
	DocumentType string `json:"document_type"`
	CustomName   string `json:"custom_name,omitempty"`
}

// documentView adds the document_id field clients key their slots by
type documentView struct {
	DocumentID string `json:"document_id"`
	*model.Document
}

func view(doc *model.Document) documentView {
	return documentView{DocumentID: doc.ID, Document: doc}
}

type ReviewRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Upload handles document file upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	meta, err := parseMetadata(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	docType, err := model.ParseDocumentType(meta.DocumentType)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if docType == model.TypeCustomDocument && strings.TrimSpace(meta.CustomName) == "" {
		fail(c, http.StatusBadRequest, "custom_name is required for custom documents")
		return
	}

	contentType, err := detectContentType(file, header)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read file")
		return
	}

	doc, err := h.documents.Upload(c.Request.Context(), service.UploadInput{
		EmployeeID:   middleware.GetEmployeeID(c),
		DocumentType: docType,
		CustomName:   strings.TrimSpace(meta.CustomName),
		Filename:     header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		failWith(c, err)
		return
	}

	ok(c, http.StatusCreated, view(doc))
}

// parseMetadata reads the JSON metadata field, falling back to plain form fields
func parseMetadata(c *gin.Context) (UploadMetadata, error) {
	var meta UploadMetadata
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return meta, fmt.Errorf("invalid metadata: %w", err)
		}
	} else {
		meta.DocumentType = c.PostForm("document_type")
		meta.CustomName = c.PostForm("custom_name")
	}
	if meta.DocumentType == "" {
		meta.DocumentType = string(model.TypeGeneral)
	}
	return meta, nil
}

// detectContentType trusts a specific declared type, otherwise sniffs the
// first bytes and falls back to the file extension
func detectContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	declared := header.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := http.DetectContentType(buffer[:n])
	if model.AllowedMimeType(detected) {
		return detected, nil
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(header.Filename))]; ok {
		return t, nil
	}
	return detected, nil
}

// List returns documents visible to the caller. HR may filter by employee_id
func (h *DocumentHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := service.ListFilter{Page: page, PageSize: pageSize}.Normalize()
	if middleware.GetRole(c) == model.RoleHR {
		filter.EmployeeID = c.Query("employee_id")
	} else {
		filter.EmployeeID = middleware.GetEmployeeID(c)
	}

	docs, total, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		failWith(c, err)
		return
	}

	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = view(d)
	}
	ok(c, http.StatusOK, gin.H{
		"documents": views,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// Get returns a single document
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, found := h.load(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, view(doc))
}

// Analyze runs AI verification synchronously and returns the verdict
func (h *DocumentHandler) Analyze(c *gin.Context) {
	doc, found := h.load(c)
	if !found {
		return
	}

	analysis, err := h.documents.Analyze(c.Request.Context(), doc.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, analysis)
}

// GetAnalysis returns the last stored verdict
func (h *DocumentHandler) GetAnalysis(c *gin.Context) {
	doc, found := h.load(c)
	if !found {
		return
	}
	if doc.Analysis == nil {
		failWith(c, service.ErrAnalysisNotFound)
		return
	}
	ok(c, http.StatusOK, doc.Analysis)
}

// Review records an HR verification decision
func (h *DocumentHandler) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}

	doc, err := h.documents.Review(c.Request.Context(), c.Param("id"),
		model.VerificationStatus(strings.ToLower(req.Status)), req.Notes, middleware.GetUsername(c))
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, view(doc))
}

// Download streams the file, or returns a presigned URL when ?presign=true
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, found := h.load(c)
	if !found {
		return
	}

	if c.Query("presign") == "true" {
		url, err := h.documents.PresignedURL(c.Request.Context(), doc.ID)
		if err != nil {
			failWith(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"url": url})
		return
	}

	rc, doc, err := h.documents.Open(c.Request.Context(), doc.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, doc.FileSize, doc.MimeType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename),
	})
}

// Delete deletes a document
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, found := h.load(c)
	if !found {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), doc.ID); err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Document deleted"})
}

// load fetches the :id document and enforces that employees only reach their own
func (h *DocumentHandler) load(c *gin.Context) (*model.Document, bool) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return nil, false
	}
	if middleware.GetRole(c) != model.RoleHR && doc.EmployeeID != middleware.GetEmployeeID(c) {
		// same answer as a missing document so ids cannot be probed
		fail(c, http.StatusNotFound, "Document not found")
		return nil, false
	}
	return doc, true
}
