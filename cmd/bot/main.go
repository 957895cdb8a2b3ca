// cmd/bot/main.go
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-ticket-bot/internal/archive"
	"discord-ticket-bot/internal/bot"
	"discord-ticket-bot/internal/capture"
	"discord-ticket-bot/internal/config"
	"discord-ticket-bot/internal/database"
	"discord-ticket-bot/internal/media"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.LogLevel)

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("could not create data directories")
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open database")
	}
	defer db.Close()

	fetcher := media.NewFetcher(cfg.MediaDir())
	pipeline := capture.NewPipeline(db, fetcher)
	generator := archive.NewGenerator(db, archive.Dirs{
		Archives: cfg.ArchivesDir(),
		Logs:     cfg.LogsDir(),
	})

	handler := bot.NewBotHandler(cfg, db, pipeline, generator)

	discord, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create Discord session")
	}

	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	handler.SetSession(discord)

	if err := discord.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open Discord connection")
	}
	defer discord.Close()

	if err := handler.RegisterCommands(discord); err != nil {
		log.Fatal().Err(err).Msg("could not register slash commands")
	}

	log.Info().Msg("ticket bot is running, press Ctrl+C to exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
}
