package main

import (
	"database/sql"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/clients/challonge"
	"github.com/TreZc0/hyrule-town-hall-sub000/clients/startgg"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/aggregator"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/db"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/lifecycle"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging/discord"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/outbox"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/provisioner"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/qualifier"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/race"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timing"
)

// Services bundles the wired engine components.
type Services struct {
	Controller  *lifecycle.Controller
	Provisioner *provisioner.Provisioner
	Dispatcher  *discord.Dispatcher
}

func setupServices(database *sql.DB, session *discordgo.Session, cfg *Config) *Services {
	// Database layer → repository layer → engine layer
	queries := db.New(database)
	raceRepo := race.NewRepository(queries)
	qualRepo := qualifier.NewRepository(queries)
	timingRepo := timing.NewRepository(queries)
	outboxRepo := outbox.NewRepository(queries)

	surface := discord.NewSurface(session)
	clock := clockwork.NewRealClock()

	reporters := setupReporters(cfg)
	agg := aggregator.New(surface, raceRepo, timingRepo, reporters, outboxRepo, clock)

	lifecycleCfg := lifecycle.DefaultConfig()
	if cfg.Engine.CountdownFrom > 0 {
		lifecycleCfg.CountdownFrom = cfg.Engine.CountdownFrom
	}
	if cfg.Engine.CountdownTickSeconds > 0 {
		lifecycleCfg.CountdownTick = time.Duration(cfg.Engine.CountdownTickSeconds) * time.Second
	}
	if cfg.Engine.RevertWindowSeconds > 0 {
		lifecycleCfg.RevertWindow = time.Duration(cfg.Engine.RevertWindowSeconds) * time.Second
	}
	controller := lifecycle.NewController(surface, raceRepo, qualRepo, timingRepo, agg, outboxRepo, clock, lifecycleCfg)

	provisionerCfg := provisioner.DefaultConfig()
	if cfg.Engine.ScanIntervalSeconds > 0 {
		provisionerCfg.ScanInterval = time.Duration(cfg.Engine.ScanIntervalSeconds) * time.Second
	}
	if cfg.Engine.LeadTimeMinutes > 0 {
		provisionerCfg.LeadTime = time.Duration(cfg.Engine.LeadTimeMinutes) * time.Minute
	}
	prov := provisioner.New(surface, raceRepo, qualRepo, outboxRepo, clock, provisionerCfg)

	dispatcher := discord.NewDispatcher(session, controller)

	return &Services{
		Controller:  controller,
		Provisioner: prov,
		Dispatcher:  dispatcher,
	}
}

// setupReporters builds the bracket sinks. A missing credential
// disables that sink rather than failing startup.
func setupReporters(cfg *Config) []aggregator.Reporter {
	var reporters []aggregator.Reporter

	if cfg.Reporting.Startgg {
		token := getEnv("STARTGG_TOKEN", "")
		if token == "" {
			log.Warn().Msg("start.gg reporting enabled but STARTGG_TOKEN is unset, skipping")
		} else {
			reporters = append(reporters, startgg.NewClient(token))
		}
	}

	if cfg.Reporting.Challonge {
		apiKey := getEnv("CHALLONGE_API_KEY", "")
		if apiKey == "" {
			log.Warn().Msg("Challonge reporting enabled but CHALLONGE_API_KEY is unset, skipping")
		} else {
			reporters = append(reporters, challonge.NewClient(apiKey))
		}
	}

	return reporters
}
