// Package discord implements the messaging surface on Discord via
// discordgo. Channel and thread snowflakes map onto the int64 id space
// the engine uses.
package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
)

// threadArchiveMinutes is how long Discord keeps an idle thread live.
const threadArchiveMinutes = 1440

// Surface implements messaging.Surface against the Discord API.
type Surface struct {
	session *discordgo.Session
}

func NewSurface(session *discordgo.Session) *Surface {
	return &Surface{session: session}
}

func (s *Surface) CreateThread(ctx context.Context, channelID int64, name string) (int64, error) {
	thread, err := s.session.ThreadStartComplex(snowflake(channelID), &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadArchiveMinutes,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		Invitable:           false,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create thread: %w", err)
	}
	return parseSnowflake(thread.ID)
}

func (s *Surface) AddThreadMember(ctx context.Context, threadID, userID int64) error {
	if err := s.session.ThreadMemberAdd(snowflake(threadID), snowflake(userID), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add thread member: %w", err)
	}
	return nil
}

func (s *Surface) Post(ctx context.Context, channelID int64, content string, controls ...messaging.Control) (int64, error) {
	msg, err := s.session.ChannelMessageSendComplex(snowflake(channelID), &discordgo.MessageSend{
		Content:    content,
		Components: componentsFor(controls),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to post message: %w", err)
	}
	return parseSnowflake(msg.ID)
}

func (s *Surface) Edit(ctx context.Context, channelID, messageID int64, content string, controls ...messaging.Control) error {
	components := componentsFor(controls)
	edit := &discordgo.MessageEdit{
		Channel:    snowflake(channelID),
		ID:         snowflake(messageID),
		Content:    &content,
		Components: &components,
	}
	if _, err := s.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (s *Surface) GetMessage(ctx context.Context, channelID, messageID int64) (*messaging.Message, error) {
	msg, err := s.session.ChannelMessage(snowflake(channelID), snowflake(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return messageFor(channelID, msg)
}

func (s *Surface) RecentMessages(ctx context.Context, channelID int64, limit int) ([]messaging.Message, error) {
	msgs, err := s.session.ChannelMessages(snowflake(channelID), limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// Discord returns newest first already.
	out := make([]messaging.Message, 0, len(msgs))
	for _, m := range msgs {
		converted, err := messageFor(channelID, m)
		if err != nil {
			return nil, err
		}
		out = append(out, *converted)
	}
	return out, nil
}

func messageFor(channelID int64, msg *discordgo.Message) (*messaging.Message, error) {
	id, err := parseSnowflake(msg.ID)
	if err != nil {
		return nil, err
	}
	return &messaging.Message{
		ID:        id,
		ChannelID: channelID,
		Content:   msg.Content,
		Controls:  controlsFor(msg.Components),
	}, nil
}

// componentsFor renders the engine's controls as one button row. An
// empty control list clears the components entirely.
func componentsFor(controls []messaging.Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		buttons = append(buttons, discordgo.Button{
			CustomID: c.ID,
			Label:    c.Label,
			Style:    styleFor(c.Style),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}

func controlsFor(components []discordgo.MessageComponent) []messaging.Control {
	var controls []messaging.Control
	for _, component := range components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			if v, ok2 := component.(discordgo.ActionsRow); ok2 {
				row = &v
			} else {
				continue
			}
		}
		for _, inner := range row.Components {
			button, ok := inner.(*discordgo.Button)
			if !ok {
				if v, ok2 := inner.(discordgo.Button); ok2 {
					button = &v
				} else {
					continue
				}
			}
			controls = append(controls, messaging.Control{
				ID:    button.CustomID,
				Label: button.Label,
				Style: engineStyleFor(button.Style),
			})
		}
	}
	return controls
}

func styleFor(style messaging.ControlStyle) discordgo.ButtonStyle {
	switch style {
	case messaging.StyleSuccess:
		return discordgo.SuccessButton
	case messaging.StyleDanger:
		return discordgo.DangerButton
	case messaging.StyleSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

func engineStyleFor(style discordgo.ButtonStyle) messaging.ControlStyle {
	switch style {
	case discordgo.SuccessButton:
		return messaging.StyleSuccess
	case discordgo.DangerButton:
		return messaging.StyleDanger
	case discordgo.SecondaryButton:
		return messaging.StyleSecondary
	default:
		return messaging.StylePrimary
	}
}

func snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseSnowflake(id string) (int64, error) {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed snowflake %q: %w", id, err)
	}
	return v, nil
}
