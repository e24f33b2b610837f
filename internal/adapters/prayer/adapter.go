// Package prayer holds the upstream prayer-time adapters. Each adapter
// normalizes a provider's response into the canonical timing shape; the
// rest of the engine never sees provider-specific fields.
package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/metrics"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// Client is the adapter port. Implementations return canonical
// DailyTimings only; timings maps carry the canonical keys and nothing
// else.
type Client interface {
	// Name identifies the adapter in logs, metrics and lock values.
	Name() string
	// FetchYear fetches the full calendar for a coordinate and year.
	// The result is date-indexed: element k is day-of-year k+1.
	FetchYear(ctx context.Context, lat, lon float64, year int, key models.MethodKey) ([]models.DailyTimings, error)
	// FetchDay fetches a single day's timings.
	FetchDay(ctx context.Context, lat, lon float64, date time.Time, key models.MethodKey) (models.DailyTimings, error)
}

// RetryPolicy caps the retry loop wrapped around transient failures.
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
	Cap        time.Duration
}

// DefaultRetryPolicy matches the configuration defaults.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Base: 250 * time.Millisecond, Cap: 4 * time.Second}

// classifyStatus maps an upstream HTTP status onto the error taxonomy.
// 429 and 5xx are transient; everything else in 4xx is permanent.
func classifyStatus(adapter string, status int, retryAfter time.Duration) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return &errs.Error{
			Kind:       errs.Transient,
			Msg:        fmt.Sprintf("%s: upstream status %d", adapter, status),
			RetryAfter: retryAfter,
		}
	default:
		return &errs.Error{
			Kind: errs.Permanent,
			Msg:  fmt.Sprintf("%s: upstream status %d", adapter, status),
		}
	}
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// doJSON issues a GET, classifies failures, and decodes the body into
// out. Network-level errors are transient; a malformed body is permanent
// since retrying the same payload cannot help.
func doJSON(ctx context.Context, hc *http.Client, adapter, endpoint, url string, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.APIRequests.WithLabelValues(adapter, endpoint, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(adapter, endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrapf(errs.Permanent, err, "%s: build request", adapter)
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errs.Wrapf(errs.Transient, err, "%s: request timeout", adapter)
		}
		return errs.Wrapf(errs.Transient, err, "%s: request failed", adapter)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return classifyStatus(adapter, resp.StatusCode, parseRetryAfter(resp.Header))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrapf(errs.Permanent, err, "%s: decode response", adapter)
	}
	return nil
}

// withRetry runs op under capped exponential backoff, retrying only
// transient errors. An upstream Retry-After longer than the cap aborts
// the loop early and surfaces the transient error to the caller.
func withRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.Base
	bo.MaxInterval = policy.Cap

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errs.KindOf(err) != errs.Transient {
			return backoff.Permanent(err)
		}
		if ra := errs.RetryAfterOf(err); ra > policy.Cap {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, policy.MaxRetries), ctx))
}
