package export

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

const exportTimeout = time.Minute

// GSheetExporter pushes the XP leaderboard to Google Sheets on a cron
// schedule, one job per configured sheet.
type GSheetExporter struct {
	config    *app.Config
	engine    *lifecycle.Engine
	scheduler *gocron.Scheduler
}

func NewGSheetExporter(config *app.Config, engine *lifecycle.Engine) (*GSheetExporter, error) {
	ctx := context.Background()
	exporter := &GSheetExporter{
		config:    config,
		engine:    engine,
		scheduler: gocron.NewScheduler(time.UTC),
	}

	for i := range config.GSheet {
		cfg := config.GSheet[i]

		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}

		_, err = exporter.scheduler.Cron(cfg.Schedule).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
			defer cancel()
			if err := exporter.Export(ctx, svc, &cfg); err != nil {
				logger.Error.Printf("Export to %s failed: %v", cfg.SheetID, err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule export: %w", err)
		}
		logger.Info.Printf("Scheduled leaderboard export to %s/%s (%s)", cfg.SheetID, cfg.SheetName, cfg.Schedule)
	}

	return exporter, nil
}

func (e *GSheetExporter) Start() {
	e.scheduler.StartAsync()
}

func (e *GSheetExporter) Stop() {
	e.scheduler.Stop()
}

func (e *GSheetExporter) Export(ctx context.Context, svc *sheets.Service, cfg *app.GSheetConfig) error {
	board, err := e.engine.Leaderboard(ctx, cfg.Size)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}

	updateRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.LeaderboardRange)
	_, err = svc.Spreadsheets.Values.Update(cfg.SheetID, updateRange,
		&sheets.ValueRange{Values: leaderboardRows(board, cfg.Size)}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update leaderboard: %w", err)
	}

	if cfg.TimestampRange == "" {
		return nil
	}
	stampRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.TimestampRange)
	_, err = svc.Spreadsheets.Values.Update(cfg.SheetID, stampRange,
		&sheets.ValueRange{Values: [][]interface{}{{timestamp(time.Now(), e.config.EmojiVariants)}}}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update timestamp: %w", err)
	}

	logger.Debug.Printf("Exported %d leaderboard rows to %s", len(board), cfg.SheetID)
	return nil
}

// leaderboardRows renders rank, user, xp, level and XP to next level. The
// table is padded with blank rows up to size so shorter boards overwrite
// what a previous run left behind.
func leaderboardRows(board []models.UserProgress, size int) [][]interface{} {
	rows := make([][]interface{}, 0, size)
	for i, u := range board {
		rows = append(rows, []interface{}{i + 1, u.UserID, u.XP, u.Level, u.XPToNextLevel})
	}
	for len(rows) < size {
		rows = append(rows, []interface{}{"", "", "", "", ""})
	}
	return rows
}

func timestamp(now time.Time, emojis []string) string {
	stamp := fmt.Sprintf("UPD: %s", now.Format("2 January 15:04"))
	if len(emojis) > 0 {
		stamp += " " + emojis[rand.Intn(len(emojis))]
	}
	return stamp
}
