// Command assistant runs the inbox assistant: the Gmail scan loop, the
// Slack Socket Mode listener, the draft review lifecycle, and the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/smadden/go-inbox-assistant/internal/chat"
	"github.com/smadden/go-inbox-assistant/internal/config"
	httpapi "github.com/smadden/go-inbox-assistant/internal/http"
	"github.com/smadden/go-inbox-assistant/internal/llm"
	"github.com/smadden/go-inbox-assistant/internal/mail"
	"github.com/smadden/go-inbox-assistant/internal/observability"
	"github.com/smadden/go-inbox-assistant/internal/repo"
	"github.com/smadden/go-inbox-assistant/internal/schedule"
	"github.com/smadden/go-inbox-assistant/internal/services"
	"github.com/smadden/go-inbox-assistant/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutCtx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("failed to enable db tracing")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	// LLM
	completer := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	persona := llm.Persona{
		Name:         cfg.Persona.Name,
		Role:         cfg.Persona.Role,
		Company:      cfg.Persona.Company,
		CompanyBlurb: cfg.Persona.CompanyBlurb,
		ChatUserID:   cfg.Slack.UserID,
	}
	triager := &llm.Classifier{C: completer, Persona: persona}
	drafter := &llm.Generator{C: completer, Persona: persona}
	analyzer := &llm.Analyzer{C: completer}

	// Mail source. The token seed comes from the environment on first run;
	// refreshed tokens are persisted to the store and win afterwards.
	token, err := loadToken(ctx, db, cfg.Gmail.TokenJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load gmail token")
	}
	source, err := mail.NewSource(ctx, cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.UserEmail, token, func(tok *oauth2.Token) error {
		return saveToken(ctx, db, tok)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to gmail")
	}

	// Slack
	slackClient := slack.New(cfg.Slack.BotToken, slack.OptionAppLevelToken(cfg.Slack.AppToken))
	socketClient := socketmode.New(slackClient)
	notifier := chat.NewNotifier(slackClient, cfg.Slack.UserID)

	// Services
	voiceSvc := &services.VoiceService{
		DB:          db,
		Source:      source,
		Analyzer:    analyzer,
		OwnerEmail:  cfg.Gmail.UserEmail,
		OwnerDomain: cfg.OwnerDomain(),
	}
	draftSvc := services.NewDraftService(db, source, notifier, voiceSvc)
	draftSvc.TTL = cfg.DraftTTL
	scanSvc := &services.ScanService{
		DB:         db,
		Source:     source,
		Triager:    triager,
		Drafter:    drafter,
		Voice:      voiceSvc,
		Drafts:     draftSvc,
		Notifier:   notifier,
		MaxResults: int64(cfg.ScanBatch),
	}

	monitored := make(map[string]bool, len(cfg.Slack.ChannelIDs))
	for _, id := range cfg.Slack.ChannelIDs {
		monitored[id] = true
	}
	listener := &chat.Listener{
		DB:        db,
		Socket:    socketClient,
		API:       slackClient,
		Notifier:  notifier,
		Drafts:    draftSvc,
		Triager:   triager,
		Drafter:   drafter,
		Voice:     voiceSvc,
		UserID:    cfg.Slack.UserID,
		Monitored: monitored,
	}

	// First-run voice bootstrap; a sparse sent folder is not fatal.
	if err := voiceSvc.EnsureProfile(ctx, cfg.VoiceSampleLimit); err != nil {
		log.Warn().Err(err).Msg("voice profile bootstrap failed")
	}

	// Background drivers
	sched := schedule.New(
		schedule.ScanJob(scanSvc, cfg.ScanInterval),
		schedule.ExpireJob(draftSvc, cfg.ExpiryInterval),
		schedule.VoiceRebuildJob(voiceSvc, cfg.VoiceRebuildInterval, cfg.VoiceSampleLimit),
	)
	go sched.Run(ctx)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("chat listener stopped")
		}
	}()

	// HTTP server
	engine := gin.New()
	httpapi.RegisterRoutes(engine, drafter, draftSvc, voiceSvc, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("assistant started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
}

// loadToken prefers the refreshed token persisted in the store over the
// environment seed.
func loadToken(ctx context.Context, db *gorm.DB, seed string) (*oauth2.Token, error) {
	stored, err := repo.GetState(ctx, db, repo.StateMailToken)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	raw := sysutil.FirstNonEmpty(stored, seed)
	if raw == "" {
		return nil, errors.New("no gmail token: set GMAIL_TOKEN_JSON")
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// saveToken persists a refreshed OAuth token so restarts keep the newest
// refresh token.
func saveToken(ctx context.Context, db *gorm.DB, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return repo.SetState(ctx, db, repo.StateMailToken, string(raw))
}
