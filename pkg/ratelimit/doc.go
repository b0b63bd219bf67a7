// Package ratelimit provides the courtesy limiter shared by every catalog
// request.
//
// It wraps golang.org/x/time/rate behind a two-method Limiter interface:
//
//	limiter := ratelimit.NewPerMinute(cfg.Catalog.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// issue request
//
// A rate of zero disables limiting.
package ratelimit
