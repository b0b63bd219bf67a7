package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seedharvest/pkg/catalog"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/retry"
)

// Catalog is the part of the catalog client that hands out artifacts
type Catalog interface {
	RequestDownloadURL(ctx context.Context, id string) (string, error)
	FetchArtifact(ctx context.Context, url string) (catalog.Response, error)
}

// ArtifactStore persists artifacts under a key derived from the item id
type ArtifactStore interface {
	Key(id string) string
	Exists(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Options configures a Downloader
type Options struct {
	// MaxRetries is the total number of artifact requests allowed while
	// the upstream keeps answering with the rate-limit marker
	MaxRetries int
	// InitialRetryDelay is the wait after the first rate-limited attempt;
	// every further wait doubles it
	InitialRetryDelay time.Duration
	// Sleep replaces retry.Wait between attempts
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before every backoff wait
	OnRetry func(id string, attempt int, delay time.Duration)
}

// Downloader fetches the artifact of one catalog item into the store
type Downloader struct {
	catalog Catalog
	store   ArtifactStore
	opts    Options
	logger  logger.Logger
}

// New creates a Downloader
func New(c Catalog, store ArtifactStore, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Downloader{
		catalog: c,
		store:   store,
		opts:    opts,
		logger:  log.WithField("component", "downloader"),
	}
}

// Download makes sure the artifact for id is in the store and returns its
// key. An artifact that is already stored is returned without touching the
// network. The returned error wraps errs.ErrQuotaExhausted when the
// upstream reports that the daily quota is gone.
func (d *Downloader) Download(ctx context.Context, id string) (string, error) {
	key := d.store.Key(id)

	exists, err := d.store.Exists(ctx, key)
	if err != nil {
		return "", errs.Download("check artifact", err)
	}
	if exists {
		d.logger.DebugWithFields("Artifact already stored", map[string]interface{}{
			"item_id": id,
			"key":     key,
		})
		return key, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	url, err := d.catalog.RequestDownloadURL(ctx, id)
	if err != nil {
		return "", fmt.Errorf("item %s: %w", id, err)
	}

	body, err := retry.DoWithResult(func() ([]byte, error) {
		return d.fetch(ctx, id, url)
	}, &retry.Config{
		MaxAttempts: d.opts.MaxRetries,
		Backoff:     retry.DoublingBackoff(d.opts.InitialRetryDelay),
		RetryIf: func(err error) bool {
			return errs.IsType(err, errs.ErrorTypeRateLimit)
		},
		OnRetry: func(attempt int, _ error, delay time.Duration) {
			logger.LogRateLimit(d.logger, id, attempt, delay)
			if d.opts.OnRetry != nil {
				d.opts.OnRetry(id, attempt, delay)
			}
		},
		Sleep:   d.opts.Sleep,
		Context: ctx,
		Logger:  d.logger.WithField("item_id", id),
	})
	if err != nil {
		if errors.Is(err, errs.ErrQuotaExhausted) {
			return "", err
		}
		return "", errs.Download("download "+id, err)
	}

	if err := d.store.Save(ctx, key, body); err != nil {
		return "", errs.Download("save artifact", err)
	}

	d.logger.DebugWithFields("Artifact stored", map[string]interface{}{
		"item_id": id,
		"key":     key,
		"size":    len(body),
	})
	return key, nil
}

// fetch performs one artifact request and turns the response into either
// the artifact bytes or a typed error
func (d *Downloader) fetch(ctx context.Context, id, url string) ([]byte, error) {
	resp, err := d.catalog.FetchArtifact(ctx, url)
	if err != nil {
		return nil, err
	}

	switch verdict := catalog.Classify(resp.Status, resp.Body); verdict {
	case catalog.VerdictOK:
		return resp.Body, nil
	case catalog.VerdictQuotaExhausted:
		return nil, &errs.Error{
			Type: errs.ErrorTypeQuotaExhausted,
			Op:   "fetch artifact " + id,
			Code: resp.Status,
			Err:  errs.ErrQuotaExhausted,
		}
	case catalog.VerdictRateLimited:
		return nil, &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Op:      "fetch artifact " + id,
			Message: "upstream is throttling requests",
			Code:    resp.Status,
		}
	default:
		return nil, &errs.Error{
			Type:    errs.ErrorTypeDownload,
			Op:      "fetch artifact " + id,
			Message: fmt.Sprintf("unexpected response: %q", preview(resp.Body)),
			Code:    resp.Status,
		}
	}
}

func preview(body []byte) string {
	const max = 120
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
