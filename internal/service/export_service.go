package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/models"
	"github.com/scholchat/scholchat-api/pkg/export"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
)

// ExportFormat names a rendering of a scheduled course listing.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatICS ExportFormat = "ics"
)

// defaultSessionLength is used for calendar entries that have no recorded end.
const defaultSessionLength = time.Hour

const exportTimeLayout = "2006-01-02 15:04"

var exportHeaders = []string{"Course", "Class", "Planned", "Started", "Ended", "Location", "Status", "Participants", "Capacity"}

// ExportConfig tunes export rendering.
type ExportConfig struct {
	Title    string
	Timezone string
}

// ExportResult is a rendered listing ready to be sent as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type calendarRenderer interface {
	Render(events []export.Event, name string) ([]byte, error)
}

// ExportService renders scheduled course listings as CSV, PDF or iCalendar files.
type ExportService struct {
	csv      datasetRenderer
	pdf      datasetRenderer
	ics      calendarRenderer
	location *time.Location
	title    string
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Unknown timezones fall back to UTC.
func NewExportService(cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	location := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			logger.Warn("unknown export timezone, using UTC", zap.String("timezone", tz), zap.Error(err))
		} else {
			location = loaded
		}
	}
	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = "Scheduled courses"
	}
	return &ExportService{
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		ics:      export.NewICSExporter(),
		location: location,
		title:    title,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseExportFormat accepts csv, pdf or ics in any case.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch format := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatICS:
		return format, nil
	}
	return "", unsupportedFormat()
}

func unsupportedFormat() *appErrors.Error {
	err := appErrors.Clone(appErrors.ErrExportNotSupported, "format must be one of csv, pdf, ics")
	err.Field = "format"
	return err
}

// Export renders the listing in the requested format.
func (s *ExportService) Export(items []models.ScheduledCourseListItem, format ExportFormat) (*ExportResult, error) {
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV:
		body, err = s.csv.Render(s.dataset(items))
		contentType = "text/csv; charset=utf-8"
	case ExportFormatPDF:
		body, err = s.pdf.Render(s.dataset(items))
		contentType = "application/pdf"
	case ExportFormatICS:
		body, err = s.ics.Render(s.events(items), s.title)
		contentType = "text/calendar; charset=utf-8"
	default:
		return nil, unsupportedFormat()
	}
	if err != nil {
		s.logger.Error("render scheduled course export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("scheduled-courses_%s.%s", s.now().UTC().Format("20060102_150405"), format)
	return &ExportResult{Filename: filename, ContentType: contentType, Body: body}, nil
}

func (s *ExportService) dataset(items []models.ScheduledCourseListItem) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		capacity := ""
		if item.MaxCapacity != nil {
			capacity = strconv.Itoa(*item.MaxCapacity)
		}
		rows = append(rows, map[string]string{
			"Course":       item.CourseTitle,
			"Class":        item.ClassName,
			"Planned":      s.formatTime(&item.PlannedAt),
			"Started":      s.formatTime(item.ActualStartAt),
			"Ended":        s.formatTime(item.ActualEndAt),
			"Location":     item.Location,
			"Status":       string(item.Status),
			"Participants": strconv.Itoa(len(item.ParticipantIDs)),
			"Capacity":     capacity,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s (%s)", s.title, s.location.String()),
		Headers: exportHeaders,
		Rows:    rows,
	}
}

func (s *ExportService) events(items []models.ScheduledCourseListItem) []export.Event {
	events := make([]export.Event, 0, len(items))
	for _, item := range items {
		start := item.PlannedAt
		if item.ActualStartAt != nil {
			start = *item.ActualStartAt
		}
		end := start.Add(defaultSessionLength)
		if item.ActualEndAt != nil {
			end = *item.ActualEndAt
		}

		summary := item.CourseTitle
		if summary == "" {
			summary = item.CourseID
		}
		if item.ClassName != "" {
			summary = fmt.Sprintf("%s - %s", summary, item.ClassName)
		}
		description := ""
		if item.Description != nil {
			description = *item.Description
		}

		events = append(events, export.Event{
			UID:         item.ID + "@scholchat",
			Summary:     summary,
			Location:    item.Location,
			Description: description,
			Start:       start,
			End:         end,
			Status:      eventStatus(item.Status),
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return events
}

func eventStatus(status models.ScheduledCourseStatus) export.EventStatus {
	switch status {
	case models.ScheduledCourseStatusCancelled:
		return export.EventCancelled
	case models.ScheduledCourseStatusPlanned:
		return export.EventTentative
	default:
		return export.EventConfirmed
	}
}

func (s *ExportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.location).Format(exportTimeLayout)
}
