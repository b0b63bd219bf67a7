// Package retry provides backoff strategies and a retry loop for transient
// upstream failures.
//
// The artifact downloader uses it for rate-limited requests:
//
//	body, err := retry.DoWithResult(fetch, &retry.Config{
//		MaxAttempts: cfg.MaxRetries,
//		Backoff:     retry.DoublingBackoff(cfg.InitialRetryDelay),
//		RetryIf:     isRateLimited,
//		Context:     ctx,
//	})
//
// and the harvester retries failed listing pages with a ConstantBackoff and
// no attempt limit until its context is cancelled.
package retry
