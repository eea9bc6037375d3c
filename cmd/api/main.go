package main

import (
	"net/http"
	"os"
	"time"

	"policychat/internal/api"
	"policychat/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env")
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.Load()
	// Log configuration presence without printing secrets.
	log.Info().
		Str("addr", cfg.APIAddr).
		Bool("openai_key_set", cfg.OpenAIAPIKey != "").
		Str("openai_endpoint", cfg.OpenAIEndpoint).
		Str("chat_deployment", cfg.ChatDeployment).
		Bool("dev_auth_bypass", cfg.DevAuthBypass).
		Msg("policychat api starting")

	h := api.NewServer(cfg)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal().Err(err).Msg("api server exited")
	}
}
