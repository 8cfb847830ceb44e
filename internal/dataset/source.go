package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// FileSource loads shipments from a CSV file on local disk.
type FileSource struct {
	path   string
	logger *slog.Logger
}

var _ domain.ShipmentSource = (*FileSource)(nil)

func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: logger.With(slog.String("component", "dataset_file")),
	}
}

func (s *FileSource) LoadShipments(ctx context.Context) ([]domain.ShipmentRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ParseShipments(f, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("path", s.path),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// BlobSource loads shipments from a CSV object in blob storage.
type BlobSource struct {
	reader domain.BlobReader
	key    string
	logger *slog.Logger
}

var _ domain.ShipmentSource = (*BlobSource)(nil)

func NewBlobSource(reader domain.BlobReader, key string, logger *slog.Logger) *BlobSource {
	return &BlobSource{
		reader: reader,
		key:    key,
		logger: logger.With(slog.String("component", "dataset_blob")),
	}
}

func (s *BlobSource) LoadShipments(ctx context.Context) ([]domain.ShipmentRecord, error) {
	body, err := s.reader.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("dataset: fetch %s: %w", s.key, err)
	}
	defer body.Close()

	records, err := ParseShipments(body, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("key", s.key),
		slog.Int("records", len(records)),
	)
	return records, nil
}
