// Package main runs the InmoDocs Telegram bot: an HTTP server receiving
// Telegram webhook updates and the Google OAuth callback, plus small
// subcommands for webhook registration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/inmodocs/inmodocs-bot/internal/bot"
	"github.com/inmodocs/inmodocs-bot/internal/config"
	"github.com/inmodocs/inmodocs-bot/internal/drive"
	"github.com/inmodocs/inmodocs-bot/internal/logging"
	"github.com/inmodocs/inmodocs-bot/internal/oauth"
	"github.com/inmodocs/inmodocs-bot/internal/property"
	"github.com/inmodocs/inmodocs-bot/internal/selftest"
	"github.com/inmodocs/inmodocs-bot/internal/session"
	"github.com/inmodocs/inmodocs-bot/internal/webhook"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "inmodocs-bot",
	Short: "Telegram bot that files rental-property documents into Google Drive",
	Run:   runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server (default)",
	Run:   runServe,
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Register the webhook URL with Telegram",
	Run:   runWebhookSet,
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the webhook registration",
	Run:   runWebhookDelete,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("inmodocs-bot " + version)
	},
}

func init() {
	webhookCmd.AddCommand(webhookSetCmd, webhookDeleteCmd)
	rootCmd.AddCommand(serveCmd, webhookCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// loadToken prefers the token injected via environment, falling back to the
// configured token store. Without a token the bot cannot reach Drive; it has
// to be seeded once before the first start.
func loadToken(ctx context.Context, cfg *config.Config, store oauth.TokenStore) (*oauth2.Token, error) {
	if cfg.GoogleTokenJSON != "" {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(cfg.GoogleTokenJSON), &tok); err != nil {
			return nil, fmt.Errorf("failed to decode INMODOCS_GOOGLE_TOKEN_JSON: %w", err)
		}
		return &tok, nil
	}
	return store.Load(ctx)
}

func runServe(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := mustLoadConfig()
	ctx := context.Background()

	allowed, err := cfg.AllowedUserIDs()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid allowlist configuration")
	}

	if cfg.GoogleCredentialsJSON == "" {
		log.Fatal().Msg("INMODOCS_GOOGLE_CREDENTIALS_JSON is required")
	}
	oauthCfg, err := google.ConfigFromJSON([]byte(cfg.GoogleCredentialsJSON), gdrive.DriveScope)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse Google OAuth credentials")
	}
	if cfg.PublicBaseURL != "" {
		oauthCfg.RedirectURL = cfg.PublicBaseURL + "/oauth/callback"
	}

	store, err := oauth.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token store")
	}
	tok, err := loadToken(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).
			Msg("No Google OAuth token available; seed one via INMODOCS_GOOGLE_TOKEN_JSON or the token store")
	}

	driveSvc, err := gdrive.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Drive service")
	}
	props, err := property.NewService(drive.NewFromService(driveSvc), cfg.BaseFolderID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create property service")
	}

	tg, err := bot.NewTelegram(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	oauthSvc := oauth.NewService(oauthCfg, store, []byte(cfg.WebhookSecret), func(chatID int64, text string) error {
		return tg.SendMessage(chatID, text, nil)
	})
	runner := selftest.New(props)

	b := bot.New(tg, session.NewManager(), props, allowed, bot.Options{
		Version:    version,
		Production: cfg.IsProduction(),
		AuthURL:    oauthSvc.AuthURL,
		SelfTest: func(ctx context.Context, chatID int64) string {
			return runner.Run(ctx).String()
		},
	})

	if err := tg.SetCommands(0, bot.DefaultCommands()); err != nil {
		log.Warn().Err(err).Msg("Failed to register the global command menu")
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhook.NewHandler(cfg.WebhookSecret, b))
	mux.HandleFunc("/oauth/callback", oauthSvc.HandleCallback)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("InmoDocs bot listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-stopCtx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func runWebhookSet(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := mustLoadConfig()
	if cfg.PublicBaseURL == "" {
		log.Fatal().Msg("INMODOCS_PUBLIC_BASE_URL is required to register the webhook")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	params := tgbotapi.Params{}
	params.AddNonEmpty("url", cfg.PublicBaseURL+"/webhook")
	params.AddNonEmpty("secret_token", cfg.WebhookSecret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		log.Fatal().Err(err).Msg("Failed to register webhook")
	}
	log.Info().Str("url", cfg.PublicBaseURL+"/webhook").Msg("Webhook registered")
}

func runWebhookDelete(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := mustLoadConfig()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	if _, err := api.MakeRequest("deleteWebhook", tgbotapi.Params{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to delete webhook")
	}
	log.Info().Msg("Webhook deleted")
}
