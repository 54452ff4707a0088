package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	phttp "github.com/Alias1177/LottoPredictor/internal/platform/http"
	"github.com/Alias1177/LottoPredictor/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a Scraper
type Options struct {
	BaseURL       string
	LatestPath    string
	ArchivePath   string
	RetryInterval time.Duration // wait between WaitForLatest attempts
	MaxRetries    int
	Client        *phttp.Client
}

// OptionsFromConfig maps the scraper settings of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:       cfg.ScraperBaseURL,
		LatestPath:    cfg.ScraperLatestPath,
		ArchivePath:   cfg.ScraperArchivePath,
		RetryInterval: cfg.ScrapeRetryInterval,
		MaxRetries:    cfg.ScrapeMaxRetries,
		Client: phttp.NewClient(phttp.ClientOptions{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		}),
	}
}

// Scraper reads draw results from the results site
type Scraper struct {
	base   *url.URL
	opts   Options
	client *phttp.Client
	logger zerolog.Logger
}

// New creates a scraper for opts.BaseURL
func New(opts Options) (*Scraper, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("scraper base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scraper base url %q must be absolute", opts.BaseURL)
	}
	if opts.Client == nil {
		opts.Client = phttp.NewClient(phttp.ClientOptions{})
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Minute
	}

	return &Scraper{
		base:   base,
		opts:   opts,
		client: opts.Client,
		logger: log.With().Str("component", "scraper").Logger(),
	}, nil
}

func (s *Scraper) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("link %q: %w", ref, err)
	}
	return s.base.ResolveReference(u).String(), nil
}

func (s *Scraper) fetch(ctx context.Context, ref string) ([]byte, string, error) {
	target, err := s.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	body, err := s.client.Get(ctx, target)
	if err != nil {
		return nil, target, err
	}
	return body, target, nil
}

// Latest fetches and parses the most recent published draw
func (s *Scraper) Latest(ctx context.Context) (models.ScrapedDraw, error) {
	body, target, err := s.fetch(ctx, s.opts.LatestPath)
	if err != nil {
		return models.ScrapedDraw{}, err
	}
	draw, err := ParseLatest(bytes.NewReader(body))
	if err != nil {
		return models.ScrapedDraw{}, fmt.Errorf("%s: %w", target, err)
	}
	return draw, nil
}

// WaitForLatest polls the latest result until it parses, then stores it
// unless that draw date is already present. It reports whether a new draw
// was inserted.
func (s *Scraper) WaitForLatest(ctx context.Context, sink models.DrawSink) (models.ScrapedDraw, bool, error) {
	var draw models.ScrapedDraw
	var inserted bool

	operation := func() error {
		latest, err := s.Latest(ctx)
		if err != nil {
			return err
		}
		s.logger.Info().
			Str("draw_date", latest.DrawDate.Format(time.DateOnly)).
			Ints("numbers", latest.Numbers).
			Int("bonus_ball", latest.BonusBall).
			Int64("jackpot", latest.Jackpot).
			Msg("Latest results")

		exists, err := sink.HasDraw(ctx, latest.DrawDate)
		if err != nil {
			return err
		}
		draw = latest
		if exists {
			return nil
		}
		inserted, err = sink.InsertDraw(ctx, latest)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryInterval), uint64(s.opts.MaxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Error checking for results, retrying")
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return models.ScrapedDraw{}, false, fmt.Errorf("wait for latest results: %w", err)
	}

	if inserted {
		s.logger.Info().Str("draw_date", draw.DrawDate.Format(time.DateOnly)).Msg("Results saved")
	} else {
		s.logger.Info().Str("draw_date", draw.DrawDate.Format(time.DateOnly)).Msg("Results already saved")
	}
	return draw, inserted, nil
}

// Archive scrapes every yearly archive page linked from the archive index.
// A year that fails to load is logged and skipped.
func (s *Scraper) Archive(ctx context.Context) ([]models.ScrapedDraw, error) {
	body, target, err := s.fetch(ctx, s.opts.ArchivePath)
	if err != nil {
		return nil, err
	}
	links, err := ParseArchiveLinks(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	s.logger.Info().Strs("years", links).Msg("Found year pages")

	var all []models.ScrapedDraw
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		draws, err := s.year(ctx, link)
		if err != nil {
			s.logger.Error().Err(err).Str("year", link).Msg("Error scraping year page")
			continue
		}
		all = append(all, draws...)
	}

	s.logger.Info().Int("draws", len(all)).Msg("Scraping complete")
	return all, nil
}

func (s *Scraper) year(ctx context.Context, link string) ([]models.ScrapedDraw, error) {
	body, target, err := s.fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	draws, rowErrs, err := ParseYearTable(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	for _, re := range rowErrs {
		s.logger.Warn().Err(re.Err).Int("row", re.Row).Str("url", target).Msg("Error parsing row")
	}
	s.logger.Debug().Str("url", target).Int("draws", len(draws)).Msg("Scraped year")
	return draws, nil
}
