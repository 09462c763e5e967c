// Package store provides the sources published rulebooks are read from: a
// directory of documents, a PostgreSQL table, and a Redis read-through cache
// that can sit in front of either.
package store

import (
	"context"
	"errors"

	"rulebook-classifier/internal/rulebook"
)

var ErrNotFound = errors.New("rulebook not found")

// Getter fetches the current rulebook for one organization.
type Getter interface {
	Get(ctx context.Context, organization string) (*rulebook.Rulebook, error)
}

// Source is a Getter that can also enumerate what it holds.
type Source interface {
	Getter
	Organizations(ctx context.Context) ([]string, error)
}
