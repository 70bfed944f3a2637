// Package store holds the notification record store and its companions:
// the per-application run lock and the outcome journal.
package store

import (
	"context"
	"errors"

	"candidate-notifier/internal/common/config"
	"candidate-notifier/internal/models"
)

// ErrNotFound is returned when an application is absent or already fully notified.
var ErrNotFound = errors.New("application not found or fully notified")

// Store is the only writer of notification marks.
type Store interface {
	// FindNotifiableApplication never returns a view with both channels sent.
	FindNotifiableApplication(ctx context.Context, candidateID, requirementID string) (*models.ApplicationView, error)
	// MarkEmailSent is idempotent; the first timestamp wins.
	MarkEmailSent(ctx context.Context, applicationID string) error
	MarkSMSSent(ctx context.Context, applicationID string) error
	Ping(ctx context.Context) error
}

// Tables names the three relations the store joins.
type Tables struct {
	Tracking     string
	Candidates   string
	Requirements string
}

func TablesFromConfig(cfg config.StoreConfig) Tables {
	return Tables{
		Tracking:     cfg.TrackingTable,
		Candidates:   cfg.CandidatesTable,
		Requirements: cfg.RequirementTable,
	}
}

// NormalizeScore maps a raw match score onto [0,1]. scale is
// config.ScoreScaleFraction or config.ScoreScalePercent.
func NormalizeScore(raw float64, scale string) float64 {
	if scale == config.ScoreScalePercent {
		raw = raw / 100
	}
	switch {
	case raw < 0:
		return 0
	case raw > 1:
		return 1
	default:
		return raw
	}
}
