package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/lifecycle"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

// handlerTimeout bounds one interaction's work. The countdown sequence
// is the slowest path and finishes well inside this.
const handlerTimeout = 30 * time.Second

// Dispatcher routes Discord interactions, buttons in the async threads
// and the organizer slash commands, to the lifecycle controller.
type Dispatcher struct {
	session    *discordgo.Session
	controller *lifecycle.Controller
}

func NewDispatcher(session *discordgo.Session, controller *lifecycle.Controller) *Dispatcher {
	return &Dispatcher{session: session, controller: controller}
}

// Register hooks the dispatcher into the session and registers the
// organizer slash commands.
func (d *Dispatcher) Register(appID, guildID string) error {
	d.session.AddHandler(d.handleInteraction)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "record-result",
			Description: "Record a final time for the async attempt in this thread",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "Final time as H:MM:SS",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "vod",
					Description: "Link to the recording",
					Required:    false,
				},
				raceOption(),
				partOption(),
			},
		},
		{
			Name:        "record-forfeit",
			Description: "Record a forfeit for the async attempt in this thread",
			Options: []*discordgo.ApplicationCommandOption{
				raceOption(),
				partOption(),
			},
		},
	}
	for _, cmd := range commands {
		if _, err := d.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		d.handleComponent(i)
	case discordgo.InteractionApplicationCommand:
		d.handleCommand(i)
	}
}

func (d *Dispatcher) handleComponent(i *discordgo.InteractionCreate) {
	actorID, channelID, ok := d.interactionIDs(i)
	if !ok {
		return
	}
	messageID, err := parseSnowflake(i.Message.ID)
	if err != nil {
		log.Error().Err(err).Msg("malformed message id on interaction")
		return
	}
	customID := i.MessageComponentData().CustomID

	// Ack immediately; the controller edits the message itself.
	if err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Error().Err(err).Msg("failed to ack component interaction")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		ref, err := d.controller.ResolveThread(ctx, channelID)
		if err != nil {
			d.followupError(i, err)
			return
		}

		click := lifecycle.Click{ActorID: actorID, ChannelID: channelID, MessageID: messageID}
		switch customID {
		case messaging.ControlReady:
			err = d.controller.Ready(ctx, ref, click)
		case messaging.ControlStartCountdown:
			err = d.controller.StartCountdown(ctx, ref, click)
		case messaging.ControlFinish:
			err = d.controller.Finish(ctx, ref, click)
		case messaging.ControlRevert:
			err = d.controller.Revert(ctx, ref, click)
		case messaging.ControlForfeit:
			err = d.controller.Forfeit(ctx, ref, click)
		case messaging.ControlForfeitConfirm:
			err = d.controller.ForfeitConfirm(ctx, ref, click)
		case messaging.ControlForfeitCancel:
			err = d.controller.ForfeitCancel(ctx, ref, click)
		default:
			log.Warn().Str("custom_id", customID).Msg("unknown control clicked")
			return
		}
		if err != nil {
			d.followupError(i, err)
		}
	}()
}

func (d *Dispatcher) handleCommand(i *discordgo.InteractionCreate) {
	actorID, channelID, ok := d.interactionIDs(i)
	if !ok {
		return
	}
	data := i.ApplicationCommandData()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ref, err := d.commandRef(ctx, channelID, data.Options)
	if err != nil {
		d.respondError(i, err)
		return
	}

	switch data.Name {
	case "record-result":
		var elapsed string
		var vod *string
		for _, opt := range data.Options {
			switch opt.Name {
			case "time":
				elapsed = opt.StringValue()
			case "vod":
				v := opt.StringValue()
				vod = &v
			}
		}
		err = d.controller.RecordResult(ctx, ref, actorID, elapsed, vod)
	case "record-forfeit":
		err = d.controller.RecordForfeit(ctx, ref, actorID)
	default:
		return
	}

	if err != nil {
		d.respondError(i, err)
		return
	}
	d.respond(i, "Result recorded.")
}

func raceOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "race",
		Description: "Race id, when the command is not run inside the async thread",
		Required:    false,
	}
}

func partOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "part",
		Description: "Async part (1-3), defaults to 1 when race is given",
		Required:    false,
		MinValue:    float64Ptr(1),
		MaxValue:    3,
	}
}

func float64Ptr(v float64) *float64 { return &v }

// commandRef resolves the attempt a command targets. Explicit race/part
// options win over the invoking thread.
func (d *Dispatcher) commandRef(ctx context.Context, channelID int64, opts []*discordgo.ApplicationCommandInteractionDataOption) (models.AttemptRef, error) {
	var raceArg string
	part := models.AsyncPart(1)
	for _, opt := range opts {
		switch opt.Name {
		case "race":
			raceArg = opt.StringValue()
		case "part":
			part = models.AsyncPart(opt.IntValue())
		}
	}
	if raceArg == "" {
		return d.controller.ResolveThread(ctx, channelID)
	}
	raceID, err := uuid.Parse(raceArg)
	if err != nil {
		return models.AttemptRef{}, fmt.Errorf("%w: race id %q", lifecycle.ErrMalformedInput, raceArg)
	}
	return models.MatchAttempt(raceID, part), nil
}

// interactionIDs extracts the actor and channel ids common to every
// interaction.
func (d *Dispatcher) interactionIDs(i *discordgo.InteractionCreate) (actorID, channelID int64, ok bool) {
	if i.Member == nil || i.Member.User == nil {
		return 0, 0, false
	}
	actorID, err := parseSnowflake(i.Member.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("malformed user id on interaction")
		return 0, 0, false
	}
	channelID, err = parseSnowflake(i.ChannelID)
	if err != nil {
		log.Error().Err(err).Msg("malformed channel id on interaction")
		return 0, 0, false
	}
	return actorID, channelID, true
}

func (d *Dispatcher) respond(i *discordgo.InteractionCreate, content string) {
	err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to respond to interaction")
	}
}

func (d *Dispatcher) respondError(i *discordgo.InteractionCreate, opErr error) {
	d.respond(i, userFacing(opErr))
}

func (d *Dispatcher) followupError(i *discordgo.InteractionCreate, opErr error) {
	_, err := d.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: userFacing(opErr),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to send followup")
	}
}

// userFacing maps an operation error to the text shown to the clicker.
// The lifecycle sentinels are written for humans; anything else stays
// generic and lands in the logs instead.
func userFacing(err error) string {
	for _, sentinel := range []error{
		lifecycle.ErrUnauthorized,
		lifecycle.ErrAlreadyReady,
		lifecycle.ErrAlreadyStarted,
		lifecycle.ErrAlreadyFinished,
		lifecycle.ErrNotStarted,
		lifecycle.ErrNotFound,
		lifecycle.ErrMalformedInput,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	log.Error().Err(err).Msg("interaction failed")
	return "Something went wrong, please try again or ping an organizer."
}

// ParseSnowflake exposes the id conversion for wiring code.
func ParseSnowflake(id string) (int64, error) {
	return parseSnowflake(id)
}
