package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentchat/internal/models"

	"go.uber.org/zap"
)

// MaxDocumentSize is the largest file UploadDocument accepts.
const MaxDocumentSize = 10 << 20

// DocumentExtensions lists the file types the knowledge base can index.
var DocumentExtensions = []string{"pdf", "txt", "md"}

var (
	ErrUnsupportedFile = errors.New("unsupported file type, allowed: " + strings.Join(DocumentExtensions, ", "))
	ErrFileTooLarge    = errors.New("file too large, maximum size: 10MB")
)

// ListDocuments returns the knowledge base of agentID. Documents are not part
// of the shared state tree; the knowledge panel keeps its own list.
func (s *Service) ListDocuments(ctx context.Context, agentID string) ([]models.Document, error) {
	resp, err := s.api.ListDocuments(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return resp.Documents, nil
}

// UploadDocument validates and uploads the file at path.
func (s *Service) UploadDocument(ctx context.Context, agentID, path string) (*models.Document, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !allowedExtension(ext) {
		return nil, ErrUnsupportedFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, ErrFileTooLarge
	}

	resp, err := s.api.UploadDocument(ctx, agentID, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	s.log.Info("document uploaded",
		zap.String("agent_id", agentID),
		zap.String("filename", resp.Document.Filename),
		zap.Int("chunks", resp.Document.ChunkCount),
	)
	return &resp.Document, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.api.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func allowedExtension(ext string) bool {
	for _, e := range DocumentExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
