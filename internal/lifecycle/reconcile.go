package lifecycle

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timing"
)

// reconcileScanDepth is how many recent thread messages the startup
// scan inspects looking for a live revert window.
const reconcileScanDepth = 25

var pendingElapsedRe = regexp.MustCompile(`Finished in \*\*(\d+:\d{2}:\d{2})\*\*`)

// Reconcile re-arms revert windows lost to a restart. For every
// started-but-unrecorded attempt it scans the thread for the pending
// finish message; if one is live the window restarts in full, erring
// toward giving the runner extra revert time rather than committing a
// finish they meant to take back.
func (c *Controller) Reconcile(ctx context.Context) error {
	pending, err := c.timing.ListPendingFinishes(ctx)
	if err != nil {
		return err
	}

	rearmed := 0
	for _, pf := range pending {
		if c.reconcileAttempt(ctx, pf) {
			rearmed++
		}
	}

	log.Info().
		Int("pending", len(pending)).
		Int("rearmed", rearmed).
		Msg("reconciliation scan complete")
	return nil
}

func (c *Controller) reconcileAttempt(ctx context.Context, pf timing.PendingFinish) bool {
	msgs, err := c.surface.RecentMessages(ctx, pf.ThreadID, reconcileScanDepth)
	if err != nil {
		log.Error().Err(err).Str("attempt", pf.Ref.Key()).Msg("failed to scan thread for pending finish")
		return false
	}

	msg, elapsed, ok := findPendingWindow(msgs)
	if !ok {
		// The attempt is live with no finish pending; the runner's
		// FINISH click will arm a window as usual.
		return false
	}

	ac, err := c.resolveAttempt(ctx, pf.Ref)
	if err != nil {
		log.Error().Err(err).Str("attempt", pf.Ref.Key()).Msg("failed to resolve attempt during reconcile")
		return false
	}

	c.scheduleFinalize(pf.Ref, pf.ThreadID, msg.ID, elapsed, ac.actor.DiscordID)
	log.Info().
		Str("attempt", pf.Ref.Key()).
		Str("elapsed", timefmt.Format(elapsed)).
		Msg("re-armed revert window after restart")
	return true
}

// findPendingWindow locates the newest live revert-window message and
// extracts its elapsed time.
func findPendingWindow(msgs []messaging.Message) (*messaging.Message, time.Duration, bool) {
	for i := range msgs {
		msg := &msgs[i]
		if !msg.HasControl(messaging.ControlRevert) {
			continue
		}
		m := pendingElapsedRe.FindStringSubmatch(msg.Content)
		if m == nil {
			continue
		}
		elapsed, err := timefmt.Parse(m[1])
		if err != nil {
			continue
		}
		return msg, elapsed, true
	}
	return nil, 0, false
}
