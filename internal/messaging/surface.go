// Package messaging abstracts the chat platform the engine talks to:
// threads, rich messages and the labeled controls attached to them.
// The production implementation is the Discord adapter; tests use the
// in-memory surface.
package messaging

import "context"

// Control custom IDs form the stable vocabulary the dispatch layer
// routes on. They never change meaning between releases.
const (
	ControlReady          = "ready"
	ControlStartCountdown = "start-countdown"
	ControlFinish         = "finish"
	ControlForfeit        = "forfeit"
	ControlForfeitConfirm = "forfeit-confirm"
	ControlForfeitCancel  = "forfeit-cancel"
	ControlRevert         = "revert"
)

// ControlStyle hints how a control is rendered.
type ControlStyle int

const (
	StylePrimary ControlStyle = iota
	StyleSuccess
	StyleDanger
	StyleSecondary
)

// Control is one button attached to a message.
type Control struct {
	ID    string
	Label string
	Style ControlStyle
}

// Message is the engine's view of a posted message.
type Message struct {
	ID        int64
	ChannelID int64
	Content   string
	Controls  []Control
}

// HasControl reports whether the message carries a control with the
// given custom ID.
func (m *Message) HasControl(id string) bool {
	for _, c := range m.Controls {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Surface is the messaging backend the engine drives. Threads and
// channels share the int64 id space, as they do on the platform.
type Surface interface {
	// CreateThread opens a private thread under a channel and returns
	// its id.
	CreateThread(ctx context.Context, channelID int64, name string) (int64, error)

	// AddThreadMember invites an account into a thread.
	AddThreadMember(ctx context.Context, threadID, userID int64) error

	// Post sends a message with optional controls and returns its id.
	Post(ctx context.Context, channelID int64, content string, controls ...Control) (int64, error)

	// Edit replaces a message's content and controls in place.
	Edit(ctx context.Context, channelID, messageID int64, content string, controls ...Control) error

	// GetMessage fetches the live state of a message.
	GetMessage(ctx context.Context, channelID, messageID int64) (*Message, error)

	// RecentMessages returns up to limit newest messages in a channel,
	// newest first.
	RecentMessages(ctx context.Context, channelID int64, limit int) ([]Message, error)
}
