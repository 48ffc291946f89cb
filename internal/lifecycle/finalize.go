package lifecycle

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
)

// pendingFinalize is one armed revert window. At most one exists per
// attempt; a later FINISH replaces it wholesale.
type pendingFinalize struct {
	timer     clockwork.Timer
	cancel    chan struct{}
	channelID int64
	messageID int64
	elapsed   time.Duration
	actorID   int64
}

// finalizeTimeout bounds the commit work once the window lapses.
const finalizeTimeout = 30 * time.Second

// scheduleFinalize arms (or re-arms) the revert window for an attempt.
// The commit happens only when the timer fires with the window message
// still live and untouched. The window outlives the interaction that
// armed it, so the waiter is bound to the controller, never to a
// request context.
func (c *Controller) scheduleFinalize(ref models.AttemptRef, channelID, messageID int64, elapsed time.Duration, actorID int64) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.pending == nil {
		c.pending = make(map[string]*pendingFinalize)
	}

	key := ref.Key()
	if prev, ok := c.pending[key]; ok {
		stopAndDrainTimer(prev.timer)
		close(prev.cancel)
	}

	p := &pendingFinalize{
		timer:     c.clock.NewTimer(c.cfg.RevertWindow),
		cancel:    make(chan struct{}),
		channelID: channelID,
		messageID: messageID,
		elapsed:   elapsed,
		actorID:   actorID,
	}
	c.pending[key] = p

	go c.awaitFinalize(ref, p)
}

// cancelFinalize tears down the armed window, if any. Safe to call when
// nothing is pending.
func (c *Controller) cancelFinalize(ref models.AttemptRef) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	p, ok := c.pending[ref.Key()]
	if !ok {
		return
	}
	stopAndDrainTimer(p.timer)
	close(p.cancel)
	delete(c.pending, ref.Key())
}

func (c *Controller) awaitFinalize(ref models.AttemptRef, p *pendingFinalize) {
	select {
	case <-p.cancel:
		return
	case <-c.done:
		return
	case <-p.timer.Chan():
	}

	// Drop our registry entry before committing so a FINISH racing the
	// commit arms a fresh window instead of touching this one.
	c.pendingMu.Lock()
	if c.pending[ref.Key()] == p {
		delete(c.pending, ref.Key())
	}
	c.pendingMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	c.finalize(ctx, ref, p)
}

// finalize commits the pending finish. The live message is re-checked
// first: if the revert control is gone or the elapsed string changed,
// someone intervened during the window and the commit is abandoned.
func (c *Controller) finalize(ctx context.Context, ref models.AttemptRef, p *pendingFinalize) {
	elapsedStr := timefmt.Format(p.elapsed)

	msg, err := c.surface.GetMessage(ctx, p.channelID, p.messageID)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to re-check revert window message")
		return
	}
	if !windowStillArmed(msg, elapsedStr) {
		log.Info().Str("attempt", ref.Key()).Msg("revert window message changed, abandoning finalize")
		return
	}

	recordedAt := c.clock.Now()
	committed, err := c.timing.CommitFinish(ctx, ref, p.elapsed, p.actorID, recordedAt, nil)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to commit finish")
		return
	}
	if !committed {
		log.Info().Str("attempt", ref.Key()).Msg("finish already recorded, skipping finalize")
		return
	}

	log.Info().Str("attempt", ref.Key()).Str("elapsed", elapsedStr).Msg("finish committed")

	if err := c.surface.Edit(ctx, p.channelID, p.messageID, finishFinalContent(elapsedStr)); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to strip revert control")
	}

	c.emitTimeRecorded(ctx, ref, &p.elapsed, p.actorID, recordedAt)

	if ref.IsQualifier() {
		c.afterQualifierCommit(ctx, ref, elapsedStr)
		return
	}
	if err := c.notifier.TimeRecorded(ctx, ref.RaceID); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("completion check failed")
	}
}

// afterQualifierCommit marks the team's submission and tells the
// organizers. Qualifier attempts have no opposing half to wait for.
func (c *Controller) afterQualifierCommit(ctx context.Context, ref models.AttemptRef, elapsedStr string) {
	if err := c.quals.MarkSubmitted(ctx, ref.TeamID, ref.Kind, c.clock.Now()); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to mark qualifier submitted")
	}

	req, err := c.quals.GetRequest(ctx, ref.TeamID, ref.Kind)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to load request for submission notice")
		return
	}
	event, err := c.races.GetEvent(ctx, req.EventID)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to load event for submission notice")
		return
	}
	if event.OrganizerChannel == nil {
		return
	}
	if _, err := c.surface.Post(ctx, *event.OrganizerChannel, qualifierSubmittedNotice(req.TeamName, ref.Kind, elapsedStr)); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to post submission notice")
	}
}

// windowStillArmed reports whether the message is still the untouched
// revert-window post for this exact finish.
func windowStillArmed(msg *messaging.Message, elapsedStr string) bool {
	if len(msg.Controls) != 1 || msg.Controls[0].ID != messaging.ControlRevert {
		return false
	}
	return msg.Content == finishPendingContent(elapsedStr)
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, so a reused timer never delivers a stale tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
