package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"vibelink/internal/storage"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/google/uuid"
)

const maxAttachmentSize = 100 << 20 // 100 MiB

// AttachmentService issues presigned upload URLs for message
// attachments; clients upload directly and pass the resulting file URL
// in send_message.
type AttachmentService struct {
	store *storage.Client
}

func NewAttachmentService(store *storage.Client) *AttachmentService {
	return &AttachmentService{store: store}
}

type PresignInput struct {
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignResult struct {
	UploadURL string            `json:"upload_url"`
	FileURL   string            `json:"file_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
}

func (s *AttachmentService) CreatePresignedUpload(ctx context.Context, userID uuid.UUID, in PresignInput) (PresignResult, error) {
	if s.store == nil {
		return PresignResult{}, vibelink_errors.ErrServiceUnavailable
	}
	if in.FileName == "" || in.ContentType == "" {
		return PresignResult{}, vibelink_errors.ErrInvalidInput
	}
	if in.FileSize <= 0 || in.FileSize > maxAttachmentSize {
		return PresignResult{}, vibelink_errors.ErrInvalidInput
	}

	ext := strings.ToLower(path.Ext(in.FileName))
	key := fmt.Sprintf("attachments/%s/%d-%s%s", userID, time.Now().UnixNano(), uuid.New().String()[:8], ext)

	uploadURL, headers, err := s.store.PresignPut(ctx, key, in.ContentType, in.FileSize)
	if err != nil {
		return PresignResult{}, err
	}

	return PresignResult{
		UploadURL: uploadURL,
		FileURL:   s.store.FileURL(key),
		Headers:   headers,
		Key:       key,
	}, nil
}
