package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/batches"
	"agrotrace/company-portal/portal-backend/pkg/storage"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatPDF     Format = "pdf"
	FormatGeoJSON Format = "geojson"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrArchiveDisabled   = errors.New("export archiving is not configured")
)

// ParseFormat accepts a format name case-insensitively; "" means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/csv"
	}
}

// Artifact is a rendered export.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Archive describes an uploaded export.
type Archive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BatchReader is the part of the batch service exports depend on.
type BatchReader interface {
	GetBatch(ctx context.Context, companyID, id uuid.UUID) (*batches.Batch, error)
	ListSources(ctx context.Context, companyID, batchID uuid.UUID) ([]batches.BatchSource, error)
}

// Service renders batch traceability exports.
type Service struct {
	batches    BatchReader
	store      storage.S3Client
	presignTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewService creates an export service. store may be nil, in which case
// archiving is disabled.
func NewService(reader BatchReader, store storage.S3Client, presignTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &Service{
		batches:    reader,
		store:      store,
		presignTTL: presignTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// ExportOptions selects the output format and, for CSV, its dialect. A zero
// CSV value means DefaultCSVOptions.
type ExportOptions struct {
	Format Format
	CSV    CSVOptions
}

// Export renders the batch in the requested format.
func (s *Service) Export(ctx context.Context, companyID, batchID uuid.UUID, opts ExportOptions) (*Artifact, error) {
	format := opts.Format
	if opts.CSV == (CSVOptions{}) {
		opts.CSV = DefaultCSVOptions()
	}
	batch, err := s.batches.GetBatch(ctx, companyID, batchID)
	if err != nil {
		return nil, err
	}
	sources, err := s.batches.ListSources(ctx, companyID, batchID)
	if err != nil {
		return nil, err
	}
	report := BuildReport(*batch, sources, s.now())

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, report, opts.CSV)
	case FormatXLSX:
		err = WriteExcel(&buf, report)
	case FormatPDF:
		err = WritePDF(&buf, report)
	case FormatGeoJSON:
		err = WriteGeoJSON(&buf, report, s.logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", format, err)
	}

	return &Artifact{
		Filename:    fmt.Sprintf("batch-%s-%s.%s", sanitize(batch.Code), report.GeneratedAt.UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// ArchiveExport renders the batch and uploads it to object storage,
// returning a presigned download URL.
func (s *Service) ArchiveExport(ctx context.Context, companyID, batchID uuid.UUID, opts ExportOptions) (*Archive, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	artifact, err := s.Export(ctx, companyID, batchID, opts)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%s/%s/%d-%s", companyID, batchID, s.now().Unix(), artifact.Filename)
	if err := s.store.Upload(ctx, key, bytes.NewReader(artifact.Data), artifact.ContentType); err != nil {
		return nil, err
	}

	url, err := s.store.GetPresignedURL(ctx, key, s.presignTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Export archived",
		zap.String("batch_id", batchID.String()),
		zap.String("key", key),
		zap.Int("bytes", len(artifact.Data)))

	return &Archive{Key: key, URL: url, ExpiresAt: s.now().Add(s.presignTTL)}, nil
}

// sanitize keeps batch codes safe for file names and object keys.
func sanitize(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, code)
}
