package lifecycle

import (
	"fmt"
	"unicode/utf8"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/seed"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
)

// RevertMarker is the phrase the deferred finalize re-checks on the
// live message before committing. Changing it invalidates in-flight
// revert windows.
const RevertMarker = "30 seconds to revert"

// threadTitleLimit is the platform cap on thread names.
const threadTitleLimit = 100

// ReadyControl is the control the provisioner attaches to the thread
// instructions post.
func ReadyControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlReady, Label: "READY", Style: messaging.StyleSuccess}
}

func startCountdownControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlStartCountdown, Label: "START COUNTDOWN", Style: messaging.StylePrimary}
}

func finishControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlFinish, Label: "FINISH", Style: messaging.StyleSuccess}
}

func forfeitControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlForfeit, Label: "FORFEIT", Style: messaging.StyleDanger}
}

func revertControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlRevert, Label: "REVERT", Style: messaging.StyleDanger}
}

func forfeitConfirmControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlForfeitConfirm, Label: "CONFIRM FORFEIT", Style: messaging.StyleDanger}
}

func forfeitCancelControl() messaging.Control {
	return messaging.Control{ID: messaging.ControlForfeitCancel, Label: "CANCEL", Style: messaging.StyleSecondary}
}

// MatchThreadTitle renders "Async <label>: <player> (<1st/2nd/3rd>)",
// truncated to the platform's title limit.
func MatchThreadTitle(race *models.Race, part models.AsyncPart, rank int) string {
	player := "entrant"
	if e := race.Entrant(part); e != nil {
		player = e.Name
	}
	title := fmt.Sprintf("Async %s: %s (%s)", race.PhaseRound(), player, timefmt.Ordinal(rank))
	return truncateTitle(title)
}

// QualifierThreadTitle renders the title for a freestanding timeline.
func QualifierThreadTitle(teamName string, kind models.AsyncKind) string {
	return truncateTitle(fmt.Sprintf("Async %s: %s", kindLabel(kind), teamName))
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= threadTitleLimit {
		return title
	}
	runes := []rune(title)
	return string(runes[:threadTitleLimit-1]) + "…"
}

func kindLabel(kind models.AsyncKind) string {
	switch kind {
	case models.AsyncKindQualifier1:
		return "Qualifier 1"
	case models.AsyncKindQualifier2:
		return "Qualifier 2"
	case models.AsyncKindQualifier3:
		return "Qualifier 3"
	case models.AsyncKindSeeding:
		return "Seeding"
	case models.AsyncKindTiebreaker1:
		return "Tiebreaker 1"
	case models.AsyncKindTiebreaker2:
		return "Tiebreaker 2"
	default:
		return string(kind)
	}
}

// ThreadInstructions is the welcome post carrying the READY control.
// The first runner must record locally; later runners already have an
// opponent time on the books and may stream.
func ThreadInstructions(player string, rank int) string {
	base := fmt.Sprintf(
		"Welcome %s! This thread manages your half of the async.\n"+
			"When you are set up and ready to receive the seed, press READY. "+
			"The seed is revealed the moment you confirm, and your run starts shortly after.",
		player,
	)
	if rank <= 1 {
		return base + "\nPlease record your run locally and do not stream it until results are posted."
	}
	return base + "\nYou may stream your run if you wish."
}

// QualifierInstructions is the welcome post for a qualifier timeline.
func QualifierInstructions(teamName string, kind models.AsyncKind) string {
	return fmt.Sprintf(
		"Welcome %s! This thread manages your %s async.\n"+
			"When you are set up and ready to receive the seed, press READY. "+
			"The seed is revealed the moment you confirm, and your run starts shortly after.",
		teamName, kindLabel(kind),
	)
}

// seedMessage renders the seed reveal post.
func seedMessage(data seed.Data) string {
	msg := "Here is your seed: " + data.PlayerURL()
	if line := data.HashLine(); line != "" {
		msg += "\nFile select hash: " + line
	}
	if data.Password != "" {
		msg += "\nPassword: " + data.Password
	}
	return msg
}

func timingControlsContent() string {
	return "Your run is live. Press FINISH the moment you complete the goal, or FORFEIT to concede."
}

func finishPendingContent(elapsed string) string {
	return fmt.Sprintf("Finished in **%s**. You have %s in case you pressed this by accident.", elapsed, RevertMarker)
}

func finishFinalContent(elapsed string) string {
	return fmt.Sprintf("Finished in **%s**. Result recorded.", elapsed)
}

func forfeitPromptContent() string {
	return "Are you sure you want to forfeit this race? This cannot be undone from the thread."
}

func forfeitNoticeContent(player string) string {
	return fmt.Sprintf("**%s** has forfeited. An organizer will record the final result.", player)
}

func organizerStartNotice(label, player string, data seed.Data) string {
	msg := fmt.Sprintf("%s: %s has started their async half.", label, player)
	if data.Present() {
		msg += "\nSeed: " + data.PlayerURL()
		if line := data.HashLine(); line != "" {
			msg += "\nHash: " + line
		}
	}
	return msg + "\nPlease keep an eye on the thread."
}

func qualifierSubmittedNotice(teamName string, kind models.AsyncKind, elapsed string) string {
	return fmt.Sprintf("%s submitted a %s time: **%s**", teamName, kindLabel(kind), elapsed)
}
