package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/lix"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/retry"
)

// EmailLookup is the contact API call the email collector depends on.
type EmailLookup interface {
	GetEmailByLinkedIn(ctx context.Context, profileURL string) (*lix.EmailResult, error)
}

// EmailCollector works the profile queue: each eligible profile gets one
// attempt per run, and every attempt is recorded whether or not an address
// came back. Profiles retire on a VALID address or after the retry cap.
type EmailCollector struct {
	repo   *store.EmailRepository
	client EmailLookup
	logger zerolog.Logger
}

func NewEmailCollector(repo *store.EmailRepository, client EmailLookup) *EmailCollector {
	return &EmailCollector{
		repo:   repo,
		client: client,
		logger: logging.NewLogger("collector").With().Str("collection", "emails").Logger(),
	}
}

// Run attempts every eligible profile once.
func (c *EmailCollector) Run(ctx context.Context) (Stats, error) {
	profiles, err := c.repo.ListEligible(ctx)
	if err != nil {
		return Stats{}, err
	}

	c.logger.Info().Int("pending", len(profiles)).Msg("Starting email collection")

	var stats Stats
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, err := c.client.GetEmailByLinkedIn(ctx, profile.LinkedInURL)
		if errors.Is(err, retry.ErrSkip) {
			// A transient skip must not burn one of the profile's capped
			// attempts. The profile stays eligible for the next run.
			if retry.Classify(err) != retry.ClassNotFound {
				c.logger.Warn().Err(err).Str("profile", profile.LinkedInURL).Msg("Transient failure, profile stays pending")
				lookupsTotal.WithLabelValues("emails", "skipped").Inc()
				stats.Skipped++
				continue
			}
			// A not-found profile still consumes an attempt, so it
			// eventually hits the retry cap instead of looping forever.
			c.logger.Warn().Str("profile", profile.LinkedInURL).Msg("Profile not found")
			if err := c.repo.SaveAttempt(ctx, profile.ID, "", lix.EmailStatusUnknown, ""); err != nil {
				return stats, err
			}
			lookupsTotal.WithLabelValues("emails", "unresolved").Inc()
			stats.Unresolved++
			continue
		}
		if err != nil {
			lookupsTotal.WithLabelValues("emails", "error").Inc()
			return stats, fmt.Errorf("email lookup %s: %w", profile.LinkedInURL, err)
		}

		alternatives := ""
		if len(result.Alternatives) > 0 {
			encoded, err := json.Marshal(result.Alternatives)
			if err != nil {
				return stats, fmt.Errorf("encode alternatives: %w", err)
			}
			alternatives = string(encoded)
		}

		if err := c.repo.SaveAttempt(ctx, profile.ID, result.Email, result.Status, alternatives); err != nil {
			return stats, err
		}
		lookupsTotal.WithLabelValues("emails", "collected").Inc()
		stats.Collected++

		c.logger.Debug().
			Str("profile", profile.LinkedInURL).
			Str("status", result.Status).
			Msg("Email attempt recorded")
	}

	c.logger.Info().
		Int("attempted", stats.Collected).
		Int("unresolved", stats.Unresolved).
		Msg("Email collection finished")

	return stats, nil
}
