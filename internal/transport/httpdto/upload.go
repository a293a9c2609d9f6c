package httpdto

// PresignUploadRequest is used for POST /uploads/presign
type PresignUploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required"`
}

// PresignUploadResponse carries the direct-upload target
type PresignUploadResponse struct {
	UploadURL string            `json:"upload_url"`
	FileURL   string            `json:"file_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
}
