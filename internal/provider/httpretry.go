package provider

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"pricebars/internal/domain"
)

// transientStatuses are the upstream statuses the adapter layer recovers
// from internally rather than surfacing to the engine.
var transientStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// RetryPolicy controls how doWithRetry paces retries across transient
// upstream failures. It is configured per provider from the HTTP section
// of the application config, rather than hardcoded.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	CapDelay  time.Duration
}

// DefaultRetryPolicy matches spec.md's documented defaults: three
// attempts, 1s base backoff doubling up to a 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, CapDelay: 10 * time.Second}
}

// doWithRetry issues do up to policy.Attempts times, recovering transient
// upstream statuses with exponential backoff capped at policy.CapDelay.
// The final response is always returned with a nil error as long as a
// response was obtained, even if every attempt saw a transient status;
// callers classify the final response's status themselves so the real
// status code and body always flow through. err is non-nil only when the
// underlying do() call itself failed (a transport error) or the context
// was canceled while waiting to retry.
func doWithRetry(ctx context.Context, policy RetryPolicy, do func() (*resty.Response, error)) (*resty.Response, error) {
	delay := policy.BaseDelay
	var resp *resty.Response
	var err error

	for attempt := 0; attempt < policy.Attempts; attempt++ {
		resp, err = do()
		if err == nil && !transientStatuses[resp.StatusCode()] {
			return resp, nil
		}

		if attempt < policy.Attempts-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
			if delay > policy.CapDelay {
				delay = policy.CapDelay
			}
		}
	}
	return resp, err
}

// classifyFailure turns a non-transient or retry-exhausted response into
// the taxonomy's provider-failure (or credential-stale, for 401/403).
func classifyFailure(providerID domain.ProviderID, resp *resty.Response) error {
	status := resp.StatusCode()
	if status == 401 || status == 403 {
		return &domain.CredentialStaleError{Provider: providerID}
	}
	return &domain.ProviderFailureError{
		Provider:   providerID,
		StatusCode: status,
		Body:       redactBody(resp.String()),
	}
}

// redactBody is a conservative placeholder: adapters never echo cookie or
// token values into the response body they log, since those live in
// request headers the resty client sets directly, not in upstream
// response payloads. Kept as a seam in case a future provider reflects
// request parameters back in error bodies.
func redactBody(body string) string {
	const maxLen = 2048
	if len(body) > maxLen {
		return body[:maxLen] + "...(truncated)"
	}
	return body
}
