package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/repository/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ArchiveURLExpiry is how long an archive download link stays valid
const ArchiveURLExpiry = 15 * time.Minute

// Archive describes an export written to object storage
type Archive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportService stores CSV exports in object storage
type ExportService struct {
	csv     *CSVService
	storage storage.ExportRepository
	now     func() time.Time
}

// NewExportService creates a new ExportService. A nil repository disables archives.
func NewExportService(csv *CSVService, repo storage.ExportRepository) *ExportService {
	return &ExportService{csv: csv, storage: repo, now: time.Now}
}

// IsEnabled indicates whether archives can be written
func (s *ExportService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// Archive exports a month (or everything when month is 0) and returns a
// presigned link to the uploaded file
func (s *ExportService) Archive(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*Archive, error) {
	if !s.IsEnabled() {
		return nil, domain.ErrArchiveDisabled
	}

	var buf bytes.Buffer
	var err error
	if month == 0 {
		err = s.csv.ExportAll(ctx, &buf, userID)
	} else {
		err = s.csv.ExportMonth(ctx, &buf, userID, year, month)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := storage.ExportObjectPath(userID, now)
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv", int64(buf.Len())); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("key", key).Msg("Failed to upload export archive")
		return nil, fmt.Errorf("upload export: %w", err)
	}

	url, err := s.storage.GeneratePresignedURL(ctx, key, ArchiveURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	log.Info().Str("user_id", userID.String()).Str("key", key).Int("bytes", buf.Len()).Msg("Export archived")
	return &Archive{Key: key, URL: url, ExpiresAt: now.Add(ArchiveURLExpiry)}, nil
}
