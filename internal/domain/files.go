package domain

import (
	"math"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes an uploaded document available as query context.
type FileInfo struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"`
}

// ModifiedAt converts the epoch-seconds modification time.
func (f FileInfo) ModifiedAt() time.Time {
	sec, frac := math.Modf(f.Modified)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// UploadResult is returned by the document service after an upload.
type UploadResult struct {
	Filename      string `json:"filename"`
	FileType      string `json:"file_type"`
	NumPages      int    `json:"num_pages,omitempty"`
	NumParagraphs int    `json:"num_paragraphs,omitempty"`
}

// SupportedDocumentExtensions lists the document types the pipeline parses.
var SupportedDocumentExtensions = []string{".pdf", ".docx", ".doc"}

// IsSupportedDocument reports whether name has a parseable extension.
func IsSupportedDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedDocumentExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
