package api

import "encoding/json"

type FileUploadResponse struct {
	FileID     string          `json:"file_id"`
	Filename   string          `json:"filename"`
	FileSize   int64           `json:"file_size"`
	ObjectURL  string          `json:"object_url"`
	Columns    []string        `json:"columns"`
	RowCount   int64           `json:"row_count"`
	Preview    json.RawMessage `json:"preview,omitempty"`
	UploadedAt string          `json:"uploaded_at"`
}

type FilePreviewResponse struct {
	Columns  []string        `json:"columns"`
	RowCount int64           `json:"row_count"`
	Preview  json.RawMessage `json:"preview,omitempty"`
}
