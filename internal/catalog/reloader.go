package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/common/metrics"
	"rulebook-classifier/internal/store"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentLoads = 4

// Reloader pulls rulebooks from a source into a Registry. A failed load never
// unpublishes anything: the previous rulebook stays live until a good one
// replaces it.
type Reloader struct {
	source        store.Source
	registry      *Registry
	organizations []string
	interval      time.Duration
	logger        logger.Logger
}

// NewReloader builds a reloader. With an empty organizations list every
// organization the source reports is loaded. interval <= 0 disables polling
// in Run.
func NewReloader(source store.Source, registry *Registry, organizations []string, interval time.Duration, log logger.Logger) *Reloader {
	return &Reloader{
		source:        source,
		registry:      registry,
		organizations: organizations,
		interval:      interval,
		logger:        log.WithFields(map[string]interface{}{"component": "rulebook-reloader"}),
	}
}

// Reload fetches one organization's rulebook and publishes it.
func (r *Reloader) Reload(ctx context.Context, organization string) error {
	start := time.Now()

	rb, err := r.source.Get(ctx, organization)
	if err != nil {
		metrics.RulebookReloads.WithLabelValues(organization, "failed").Inc()
		_, kept := r.registry.Get(organization)
		r.logger.Error("rulebook reload failed", map[string]interface{}{
			"organization":  organization,
			"error":         err.Error(),
			"keptPublished": kept,
			"durationMs":    time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("reload %s: %w", organization, err)
	}

	previous := r.registry.Publish(rb)
	metrics.RulebookReloads.WithLabelValues(organization, "success").Inc()
	metrics.RulebooksPublished.Set(float64(r.registry.Len()))

	r.logger.Info("rulebook published", map[string]interface{}{
		"organization": organization,
		"classes":      rb.Len(),
		"replaced":     previous != nil,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return nil
}

// ReloadAll reloads every configured organization concurrently and returns
// the joined failures.
func (r *Reloader) ReloadAll(ctx context.Context) error {
	orgs := r.organizations
	if len(orgs) == 0 {
		listed, err := r.source.Organizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}
		orgs = listed
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentLoads)
	for _, org := range orgs {
		org := org
		g.Go(func() error {
			if err := r.Reload(ctx, org); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Run loads everything once and then polls until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) {
	if err := r.ReloadAll(ctx); err != nil {
		r.logger.Warn("initial rulebook load incomplete", map[string]interface{}{"error": err.Error()})
	}
	r.Poll(ctx)
}

// Poll reloads everything on the configured interval until ctx is cancelled.
// It returns immediately when polling is disabled.
func (r *Reloader) Poll(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReloadAll(ctx); err != nil {
				r.logger.Warn("periodic rulebook reload incomplete", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
