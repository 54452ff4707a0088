package scheduler

import (
	"context"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/rs/zerolog"
)

// LatestScraper polls for the latest published draw and stores it
type LatestScraper interface {
	WaitForLatest(ctx context.Context, sink models.DrawSink) (models.ScrapedDraw, bool, error)
}

// LatestScrapeJob checks for the latest results after a draw
type LatestScrapeJob struct {
	log     zerolog.Logger
	ctx     context.Context
	scraper LatestScraper
	sink    models.DrawSink
	timeout time.Duration
}

// LatestScrapeConfig holds configuration for the latest scrape job
type LatestScrapeConfig struct {
	Log zerolog.Logger
	// Context bounds every run; cancelling it aborts a poll in progress
	Context context.Context
	Scraper LatestScraper
	Sink    models.DrawSink
	// Timeout caps one run, zero means no cap
	Timeout time.Duration
}

// NewLatestScrapeJob creates a new latest scrape job
func NewLatestScrapeJob(cfg LatestScrapeConfig) *LatestScrapeJob {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &LatestScrapeJob{
		log:     cfg.Log.With().Str("job", "latest_scrape").Logger(),
		ctx:     ctx,
		scraper: cfg.Scraper,
		sink:    cfg.Sink,
		timeout: cfg.Timeout,
	}
}

// Name returns the job name
func (j *LatestScrapeJob) Name() string {
	return "latest_scrape"
}

// Run waits for the latest results and saves them
func (j *LatestScrapeJob) Run() error {
	ctx := j.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	j.log.Info().Msg("Checking for latest results")
	start := time.Now()

	draw, inserted, err := j.scraper.WaitForLatest(ctx, j.sink)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("draw_date", draw.DrawDate.Format(time.DateOnly)).
		Bool("inserted", inserted).
		Dur("duration", time.Since(start)).
		Msg("Latest results scraper finished")
	return nil
}
