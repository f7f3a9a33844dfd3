package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/adapters/asr"
	"github.com/longxianmian/goodpick-go-sub000/adapters/bridge"
	"github.com/longxianmian/goodpick-go-sub000/adapters/mongo"
	"github.com/longxianmian/goodpick-go-sub000/adapters/translate"
	"github.com/longxianmian/goodpick-go-sub000/adapters/tts"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/api"
	"github.com/longxianmian/goodpick-go-sub000/internal/auth"
	"github.com/longxianmian/goodpick-go-sub000/internal/authz"
	"github.com/longxianmian/goodpick-go-sub000/internal/config"
	"github.com/longxianmian/goodpick-go-sub000/internal/ratelimit"
	"github.com/longxianmian/goodpick-go-sub000/internal/recognition"
	translateEngine "github.com/longxianmian/goodpick-go-sub000/internal/translate"
	"github.com/longxianmian/goodpick-go-sub000/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Storage
	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	users := mongo.NewUserRepository(mongoClient.Database)
	groups := mongo.NewGroupRepository(mongoClient.Database)
	messages := mongo.NewMessageRepository(mongoClient.Database)

	// Authentication fails fast on a missing secret.
	authenticator, err := auth.New(cfg.JWTSecret, users, !cfg.IsProduction())
	if err != nil {
		logger.Fatal("failed to initialize authenticator", zap.Error(err))
	}

	// Providers
	translator := buildTranslator(cfg, logger)
	recognizer := buildRecognizer(cfg, logger)
	synthesizer := buildSynthesizer(cfg, logger)

	messageBridge := bridge.NewWebhookBridge(cfg.BridgeWebhookURL, logger)

	// Realtime core
	registry := websocket.NewRegistry(logger)
	authorizer := authz.New(registry, users, groups, logger)
	limiter := ratelimit.New(cfg.MessageRatePerMinute, cfg.SignalRatePerMinute)
	engine := translateEngine.NewEngine(translator, messages, logger)
	recognitionManager := recognition.NewManager(recognizer, logger)

	router := websocket.NewRouter(websocket.Deps{
		Registry:    registry,
		Auth:        authenticator,
		Authorizer:  authorizer,
		Limiter:     limiter,
		Engine:      engine,
		Recognition: recognitionManager,
		Users:       users,
		Groups:      groups,
		Messages:    messages,
		Synthesizer: synthesizer,
		Bridge:      messageBridge,
		Logger:      logger,
	})

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := api.NewHandler(authenticator, users, router, logger)
	handler.InitRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	recognitionManager.Shutdown()
	if err := mongoClient.Close(ctx); err != nil {
		logger.Error("MongoDB shutdown failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

func buildTranslator(cfg *config.Config, logger *zap.Logger) repositories.Translator {
	switch cfg.TranslateProvider {
	case "gemini":
		t, err := translate.NewGeminiTranslator(cfg.GeminiAPIKey, logger)
		if err != nil {
			logger.Fatal("failed to initialize Gemini translator", zap.Error(err))
		}
		return t
	default:
		t, err := translate.NewDashScopeTranslator(cfg.DashScopeAPIKey, cfg.DashScopeBaseURL, logger)
		if err != nil {
			logger.Fatal("failed to initialize DashScope translator", zap.Error(err))
		}
		return t
	}
}

func buildRecognizer(cfg *config.Config, logger *zap.Logger) repositories.Recognizer {
	switch cfg.ASRProvider {
	case "google":
		return asr.NewGoogleRecognizer(logger)
	default:
		r, err := asr.NewDashScopeRecognizer(cfg.DashScopeAPIKey, cfg.ASRWebSocketURL, cfg.ASRModel, logger)
		if err != nil {
			logger.Fatal("failed to initialize DashScope recognizer", zap.Error(err))
		}
		return r
	}
}

// buildSynthesizer returns nil when TTS is unconfigured; the spoken
// reply path degrades to text-only delivery.
func buildSynthesizer(cfg *config.Config, logger *zap.Logger) repositories.SpeechSynthesizer {
	if cfg.TTSAPIKey == "" {
		logger.Warn("TTS_API_KEY not set, spoken replies disabled")
		return nil
	}
	s, err := tts.NewElevenLabs(tts.ElevenLabsConfig{
		APIKey:     cfg.TTSAPIKey,
		APIBaseURL: cfg.TTSBaseURL,
		VoiceID:    cfg.TTSVoiceID,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize speech synthesizer", zap.Error(err))
	}
	return s
}
