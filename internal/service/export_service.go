package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/export"
)

type rosterSource interface {
	Roster(ctx context.Context, session *models.Session) ([]models.RosterRow, error)
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var rosterHeaders = []string{"ID", "Mision", "Estado", "Inscritos"}

// ExportResult is a rendered document ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the management roster as a downloadable document.
type ExportService struct {
	roster    rosterSource
	exporters map[string]export.Exporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil exporters fall back to the defaults.
func NewExportService(roster rosterSource, csv, pdf export.Exporter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		roster:    roster,
		exporters: map[string]export.Exporter{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// Roster renders the session institution's roster in format.
func (s *ExportService) Roster(ctx context.Context, session *models.Session, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	rows, err := s.roster.Roster(ctx, session)
	if err != nil {
		return nil, err
	}

	payload, err := exporter.Render(buildRosterDataset(session.InstitutionID, rows))
	if err != nil {
		s.logger.Error("roster render failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("misiones-%d-%s.%s", session.InstitutionID, s.now().UTC().Format("20060102"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Payload:     payload,
	}, nil
}

func buildRosterDataset(institutionID int64, rows []models.RosterRow) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Gestion de misiones - institucion %d", institutionID),
		Headers: rosterHeaders,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		enrolled := ""
		if row.Enrolled != nil {
			enrolled = strconv.Itoa(*row.Enrolled)
		}
		data.Rows = append(data.Rows, map[string]string{
			"ID":        strconv.FormatInt(row.MissionID, 10),
			"Mision":    row.Title,
			"Estado":    string(row.Status),
			"Inscritos": enrolled,
		})
	}
	return data
}
