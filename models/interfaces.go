package models

import (
	"context"
	"time"
)

type DrawSource interface {
	RecentDraws(ctx context.Context, limit int) ([]DrawRow, error)
}

type DrawSink interface {
	HasDraw(ctx context.Context, drawDate time.Time) (bool, error)
	InsertDraw(ctx context.Context, draw ScrapedDraw) (bool, error)
}
