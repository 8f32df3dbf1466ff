package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/app"
)

// GSheetExporter pushes the scoreboard and the recent updates feed to a
// Google Sheet on a fixed schedule, so the front office can project the
// standings without touching the service.
type GSheetExporter struct {
	config        *app.Config
	service       *app.Service
	scheduler     *gocron.Scheduler
	sheetsService *sheets.Service
}

func NewGSheetExporter(config *app.Config, service *app.Service) (*GSheetExporter, error) {
	if config.Export.SpreadsheetID == "" {
		return nil, fmt.Errorf("export.spreadsheet_id is not configured")
	}

	ctx := context.Background()
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(config.Export.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	exporter := &GSheetExporter{
		config:        config,
		service:       service,
		scheduler:     gocron.NewScheduler(time.UTC),
		sheetsService: svc,
	}

	interval := config.Export.IntervalMinutes
	if interval <= 0 {
		interval = 60
	}
	if _, err := exporter.scheduler.Every(interval).Minutes().Do(exporter.export); err != nil {
		return nil, fmt.Errorf("failed to schedule export: %w", err)
	}
	exporter.scheduler.StartAsync()

	return exporter, nil
}

func (e *GSheetExporter) Stop() {
	e.scheduler.Stop()
}

func (e *GSheetExporter) export() {
	rows, err := e.service.Scoreboard()
	if err != nil {
		logger.Error.Printf("Export: failed to fetch scoreboard: %v", err)
		return
	}
	updates, err := e.service.UpdatesFeed()
	if err != nil {
		logger.Error.Printf("Export: failed to fetch updates: %v", err)
		return
	}

	values := [][]interface{}{
		{"House", "Points"},
	}
	for _, row := range rows {
		values = append(values, []interface{}{row.Name, row.Points})
	}

	values = append(values, []interface{}{})
	values = append(values, []interface{}{"House", "Delta", "Reason", "Teacher", "When"})
	format := e.config.Display.TimestampFormat
	if format == "" {
		format = "Jan 2 15:04"
	}
	for _, entry := range updates {
		teacher := ""
		if entry.Teacher != nil {
			teacher = *entry.Teacher
		}
		values = append(values, []interface{}{
			entry.House,
			entry.Delta,
			entry.Reason,
			teacher,
			time.UnixMilli(entry.Timestamp).Format(format),
		})
	}

	vr := &sheets.ValueRange{Values: values}
	_, err = e.sheetsService.Spreadsheets.Values.
		Update(e.config.Export.SpreadsheetID, e.config.Export.Range, vr).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		logger.Error.Printf("Export: failed to update sheet: %v", err)
		return
	}

	logger.Info.Printf("Exported scoreboard to sheet %s", e.config.Export.SpreadsheetID)
}
