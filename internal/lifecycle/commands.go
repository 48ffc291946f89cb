package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
)

// RecordResult is the organizer override: it stamps an attempt with the
// given elapsed time regardless of the thread's state. The HH:MM:SS
// argument is validated but field widths are not enforced.
func (c *Controller) RecordResult(ctx context.Context, ref models.AttemptRef, organizerID int64, elapsed string, vodLink *string) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if err := c.requireOrganizer(ctx, ac.eventID, organizerID); err != nil {
		return err
	}

	d, err := timefmt.Parse(elapsed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	c.cancelFinalize(ref)

	recordedAt := c.clock.Now()
	if err := c.timing.RecordResult(ctx, ref, &d, organizerID, recordedAt, vodLink); err != nil {
		return err
	}

	log.Info().
		Str("attempt", ref.Key()).
		Int64("organizer", organizerID).
		Str("elapsed", timefmt.Format(d)).
		Msg("result recorded by organizer")

	c.emitTimeRecorded(ctx, ref, &d, organizerID, recordedAt)
	return c.afterOrganizerRecord(ctx, ref, recordedAt)
}

// RecordForfeit stamps an attempt as a forfeit on the organizer's
// authority.
func (c *Controller) RecordForfeit(ctx context.Context, ref models.AttemptRef, organizerID int64) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if err := c.requireOrganizer(ctx, ac.eventID, organizerID); err != nil {
		return err
	}

	c.cancelFinalize(ref)

	recordedAt := c.clock.Now()
	if err := c.timing.RecordResult(ctx, ref, nil, organizerID, recordedAt, nil); err != nil {
		return err
	}

	log.Info().
		Str("attempt", ref.Key()).
		Int64("organizer", organizerID).
		Msg("forfeit recorded by organizer")

	c.emitTimeRecorded(ctx, ref, nil, organizerID, recordedAt)
	return c.afterOrganizerRecord(ctx, ref, recordedAt)
}

func (c *Controller) requireOrganizer(ctx context.Context, eventID uuid.UUID, discordID int64) error {
	event, err := c.races.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.IsOrganizer(discordID) {
		return ErrUnauthorized
	}
	return nil
}

// afterOrganizerRecord runs the same post-commit bookkeeping as the
// deferred finalize.
func (c *Controller) afterOrganizerRecord(ctx context.Context, ref models.AttemptRef, recordedAt time.Time) error {
	if ref.IsQualifier() {
		if err := c.quals.MarkSubmitted(ctx, ref.TeamID, ref.Kind, recordedAt); err != nil {
			log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to mark qualifier submitted")
		}
		return nil
	}
	if err := c.notifier.TimeRecorded(ctx, ref.RaceID); err != nil {
		return fmt.Errorf("completion check failed: %w", err)
	}
	return nil
}
