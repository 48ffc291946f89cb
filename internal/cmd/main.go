package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/gateway"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/outbox"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal().Msg("DISCORD_TOKEN environment variable is required")
	}
	appID := os.Getenv("DISCORD_APP_ID")
	if appID == "" {
		log.Fatal().Msg("DISCORD_APP_ID environment variable is required")
	}
	guildID := getEnv("DISCORD_GUILD_ID", "")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer database.Close()

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	services := setupServices(database, session, cfg)

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to open Discord session")
	}
	defer session.Close()

	if err := services.Dispatcher.Register(appID, guildID); err != nil {
		log.Fatal().Err(err).Msg("failed to register Discord commands")
	}

	// Outbox relay to JetStream
	publisherCfg := outbox.DefaultJetStreamConfig()
	publisherCfg.URL = natsURL
	publisher, err := outbox.NewJetStreamPublisher(publisherCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream publisher")
	}
	defer publisher.Close()
	worker := outbox.NewWorker(database, publisher, outbox.DefaultConfig())

	// WebSocket fanout of the same event stream
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = natsURL
	eventConsumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	wsHandler := gateway.NewWebSocketHandler(connectionManager)

	server := setupServer(wsHandler, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Re-arm revert windows that were pending when the last process died.
	if err := services.Controller.Reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("startup reconcile failed")
	}

	if err := services.Provisioner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start provisioner")
	}
	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}
	go connectionManager.Start(ctx)
	go func() {
		if err := eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Msg("race engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := services.Provisioner.Stop(); err != nil {
		log.Error().Err(err).Msg("provisioner shutdown failed")
	}
	services.Controller.Close()
	if err := worker.Stop(); err != nil {
		log.Error().Err(err).Msg("outbox worker shutdown failed")
	}
	if err := eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("event consumer shutdown failed")
	}
	cancel()

	log.Info().Msg("race engine shutdown complete")
}
