// Package store provides the request journal interface and implementations.
package store

import (
	"context"
	"time"

	"rank-client/internal/models"
)

// Journal records submitted report requests and their outcomes.
type Journal interface {
	RecordRequest(ctx context.Context, entry *models.RequestEntry) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.RequestEntry, error)
	CountByStatus(ctx context.Context, since time.Time) (map[string]int, error)
	Close() error
}

// RequestFilter represents filters for querying the journal.
type RequestFilter struct {
	Status   string
	Security string
	Since    time.Time
	Limit    int
}

// NopJournal discards everything. It is used when the journal is disabled.
type NopJournal struct{}

func (NopJournal) RecordRequest(ctx context.Context, entry *models.RequestEntry) error { return nil }

func (NopJournal) ListRequests(ctx context.Context, filter RequestFilter) ([]models.RequestEntry, error) {
	return nil, nil
}

func (NopJournal) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}

func (NopJournal) Close() error { return nil }
