// Command qotdbot runs the question-of-the-day bot: it connects to the
// gateway, restores poll watchers and timers from the database, registers the
// slash commands, and serves until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/club"
	"github.com/qotdbot/qotdbot/internal/commands"
	"github.com/qotdbot/qotdbot/internal/config"
	"github.com/qotdbot/qotdbot/internal/game"
	"github.com/qotdbot/qotdbot/internal/metrics"
	"github.com/qotdbot/qotdbot/internal/poll"
	"github.com/qotdbot/qotdbot/internal/qotd"
	"github.com/qotdbot/qotdbot/internal/repo"
	"github.com/qotdbot/qotdbot/internal/sysutil"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = time.RFC3339
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	logger := log.With().Str("service", "qotdbot").Logger()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	session := chat.NewSession(cfg.Token, logger)

	polls := poll.NewReactions(db, session, cfg.Reward, logger)
	polls.EditInPlaceChannel = cfg.MetaChannel
	mega := poll.NewMega(db, session, logger)
	component := qotd.New(db, session, cfg, polls, mega, logger)
	games := game.NewRotation(db, session, cfg.GameChannel, logger)
	clubs := club.NewCache(db, logger)
	handler := commands.New(session, cfg, component, games, clubs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// event sinks: the machines decide per event whether it is theirs
	session.OnReaction(func(ev chat.ReactionEvent) {
		polls.HandleReaction(ctx, ev)
	})
	session.OnButton(func(ctx context.Context, it chat.Interaction) {
		mega.HandleButton(ctx, it)
	})
	session.OnSelect(func(ctx context.Context, it chat.Interaction) {
		mega.HandleSelect(ctx, it)
	})

	go metrics.Serve(cfg.MetricsAddr, logger)

	if err := session.Open(ctx); err != nil {
		logger.Fatal().Err(err).Msg("gateway connect failed")
	}
	defer session.Close()

	if err := handler.Register(ctx); err != nil {
		logger.Fatal().Err(err).Msg("command registration failed")
	}
	if err := component.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer component.Stop()

	logger.Info().Msg("qotdbot is ready")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
}
