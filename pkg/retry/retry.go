// Package retry implements the shared retry policy used by every API call
// site: a decision table mapping an error class to wait-and-retry, skip the
// current item, or abort the whole run.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Class classifies a failed API call for the decision table.
type Class string

const (
	// ClassRateLimit represents 429 rate limit responses.
	ClassRateLimit Class = "rate_limit"

	// ClassServer represents 5xx server errors.
	ClassServer Class = "server"

	// ClassNetwork represents transport-level failures.
	ClassNetwork Class = "network"

	// ClassDecode represents malformed response bodies on 2xx responses.
	ClassDecode Class = "decode"

	// ClassNotFound represents 404 responses, or 400 responses whose body
	// carries a structured not_found discriminator.
	ClassNotFound Class = "not_found"

	// ClassClient represents all other 4xx client errors.
	ClassClient Class = "client"
)

// Decision is the action the policy takes for an error class.
type Decision int

const (
	// Abort fails the whole run. The caller must fix the request.
	Abort Decision = iota

	// Retry waits and re-issues the same request.
	Retry

	// Skip ends processing for the current item without failing the run.
	Skip
)

// ErrSkip is returned by Do when the policy decides to skip the current
// item. Callers check it with errors.Is and move on to the next item.
var ErrSkip = errors.New("item skipped")

// ErrExhausted is returned when a bounded rule runs out of attempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// Rule is one row of the decision table.
type Rule struct {
	Decision Decision

	// Wait is the fixed delay before the next attempt (Retry) or after a
	// transient failure that ends in Skip.
	Wait time.Duration

	// MaxAttempts bounds the number of attempts. Zero means unbounded.
	MaxAttempts int
}

// Policy maps error classes to rules. Classes with no entry abort.
type Policy map[Class]Rule

// PaginationPolicy is the decision table for whole-collection pagination:
// transient failures, including transport errors, retry the same cursor
// forever; not-found ends the collection; other client errors abort.
func PaginationPolicy(wait time.Duration) Policy {
	return Policy{
		ClassRateLimit: {Decision: Retry, Wait: wait},
		ClassServer:    {Decision: Retry, Wait: wait},
		ClassNetwork:   {Decision: Retry, Wait: wait},
		ClassDecode:    {Decision: Retry, Wait: wait},
		ClassNotFound:  {Decision: Skip},
		ClassClient:    {Decision: Abort},
	}
}

// LookupPolicy is the decision table for single-item lookups: transport
// errors abandon the item for this run so the parent loop can proceed,
// everything else behaves as in PaginationPolicy. Callers telling a skipped
// item apart from a missing one classify the error behind ErrSkip.
func LookupPolicy(wait time.Duration) Policy {
	return Policy{
		ClassRateLimit: {Decision: Retry, Wait: wait},
		ClassServer:    {Decision: Retry, Wait: wait},
		ClassNetwork:   {Decision: Skip, Wait: wait},
		ClassDecode:    {Decision: Retry, Wait: wait},
		ClassNotFound:  {Decision: Skip},
		ClassClient:    {Decision: Abort},
	}
}

// Classifier maps an error from fn to a Class.
type Classifier func(error) Class

// Do executes fn under the policy. It re-invokes fn after the rule's fixed
// wait for Retry decisions, returns an error wrapping ErrSkip for Skip
// decisions, and returns the original error for Abort decisions. Waits
// respect context cancellation.
func Do(ctx context.Context, policy Policy, classify Classifier, fn func() error) error {
	attempts := 0

	for {
		err := fn()
		if err == nil {
			if attempts > 0 {
				log.Info().
					Int("attempts", attempts+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		class := classify(err)
		rule, ok := policy[class]
		if !ok {
			rule = Rule{Decision: Abort}
		}
		attempts++

		switch rule.Decision {
		case Abort:
			log.Error().
				Err(err).
				Str("error_class", string(class)).
				Msg("Unrecoverable error, aborting run")
			return err

		case Skip:
			log.Warn().
				Err(err).
				Str("error_class", string(class)).
				Msg("Skipping item")
			if rule.Wait > 0 {
				if waitErr := sleep(ctx, rule.Wait); waitErr != nil {
					return waitErr
				}
			}
			return fmt.Errorf("%w: %w", ErrSkip, err)

		case Retry:
			if rule.MaxAttempts > 0 && attempts >= rule.MaxAttempts {
				retryExhaustedTotal.WithLabelValues(string(class)).Inc()
				log.Warn().
					Err(err).
					Str("error_class", string(class)).
					Int("max_attempts", rule.MaxAttempts).
					Msg("Retry attempts exhausted")
				return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, err)
			}

			retriesTotal.WithLabelValues(string(class)).Inc()
			log.Debug().
				Err(err).
				Str("error_class", string(class)).
				Int("attempt", attempts).
				Dur("wait", rule.Wait).
				Msg("Retrying request after wait")

			if waitErr := sleep(ctx, rule.Wait); waitErr != nil {
				return waitErr
			}
		}
	}
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry wait: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
