package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/schnillerman/care-contracts-api/internal/models"
	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
	"github.com/schnillerman/care-contracts-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

type contractLister interface {
	ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error)
	ListCategories(ctx context.Context) ([]models.CareCategory, error)
}

// ExportService renders a client's contract overview as CSV or PDF.
type ExportService struct {
	contracts contractLister
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewExportService constructs an export service.
func NewExportService(contracts contractLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		contracts: contracts,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// ClientOverview renders every contract period of the client in the requested format.
func (s *ExportService) ClientOverview(ctx context.Context, clientID string, format ExportFormat) (*ExportResult, error) {
	periods, err := s.contracts.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	categories, err := s.contracts.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	overview := export.Overview{
		Title: fmt.Sprintf("Contract periods %s", clientID),
	}
	for _, p := range periods {
		name := names[p.CategoryID]
		if name == "" {
			name = p.CategoryID
		}
		overview.Rows = append(overview.Rows, export.PeriodRow{
			Category: name,
			Start:    p.StartDate,
			End:      p.EndDate,
		})
	}

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(overview)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("contracts-%s.csv", clientID),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(overview)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("contracts-%s.pdf", clientID),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
