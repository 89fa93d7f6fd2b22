package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/analysis"
	"github.com/jcarter/tradepilot/internal/auth"
	"github.com/jcarter/tradepilot/internal/broker"
	"github.com/jcarter/tradepilot/internal/command"
	"github.com/jcarter/tradepilot/internal/config"
	"github.com/jcarter/tradepilot/internal/database"
	"github.com/jcarter/tradepilot/internal/goals"
	"github.com/jcarter/tradepilot/internal/monitor"
	"github.com/jcarter/tradepilot/internal/orchestrator"
	"github.com/jcarter/tradepilot/internal/session"
	"github.com/jcarter/tradepilot/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures logging: pretty console output outside production, debug
// level via the DEBUG environment variable.
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the goal store, the trading collaborators, the orchestrator and
// the progress monitor behind the HTTP API, then runs until interrupted.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	store := goals.NewService(db)

	// Collaborators: AI analysis, simulated execution, NYSE market clock.
	analyzer := analysis.NewClient(cfg.AIEndpoint, cfg.AIModel, cfg.AIAPIKey)
	quotes := broker.NewQuoteService()
	executor := broker.NewExecutor(quotes)
	clock := broker.NewClock()

	runner := session.NewRunner(store, analyzer, executor)

	orch := orchestrator.New(store, runner, clock, cfg.TradingPollInterval)
	if cfg.ExtendedHours {
		orch.EnableExtendedHours()
	}

	progressMonitor := monitor.New(store, cfg.MonitorInterval)
	progressMonitor.OnNotification(func(n monitor.Notification) {
		zlog.Info().
			Str("goal_id", n.GoalID).
			Int("milestone", n.Milestone).
			Msg(n.Message)
	})

	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	go progressMonitor.Start(monitorCtx)

	// Services and handlers
	authService := auth.NewService(cfg.AuthSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	goalHandlers := goals.NewGinHandlers(store)
	commandHandlers := command.NewGinHandlers(command.NewRecognizer(), store, orch)
	orchHandlers := orchestrator.NewGinHandlers(orch)
	monitorHandlers := monitor.NewGinHandlers(progressMonitor)

	router := gin.Default()
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.AuthSecret, authHandlers, goalHandlers, commandHandlers, orchHandlers, monitorHandlers)

	port := cfg.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop background workers, then give in-flight requests 5 seconds.
	monitorCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes groups the API surface: public auth routes, then
// JWT-protected command, goal and monitoring routes.
func setupRoutes(
	router *gin.Engine,
	authSecret string,
	authHandlers *auth.GinHandlers,
	goalHandlers *goals.GinHandlers,
	commandHandlers *command.GinHandlers,
	orchHandlers *orchestrator.GinHandlers,
	monitorHandlers *monitor.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandlers.GenerateTokenHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(authSecret))
		{
			protected.POST("/commands", commandHandlers.SubmitCommandHandler())

			goalRoutes := protected.Group("/goals")
			{
				goalRoutes.POST("", goalHandlers.CreateGoalHandler())
				goalRoutes.GET("", goalHandlers.ListGoalsHandler())
				goalRoutes.GET("/summary", goalHandlers.SummaryHandler())
				goalRoutes.GET("/leaderboard", monitorHandlers.LeaderboardHandler())
				goalRoutes.GET("/workers", orchHandlers.WorkersHandler())
				goalRoutes.GET("/:goal_id", goalHandlers.GetGoalHandler())
				goalRoutes.GET("/:goal_id/report", monitorHandlers.ReportHandler())
				goalRoutes.POST("/:goal_id/start", orchHandlers.StartTradingHandler())
				goalRoutes.POST("/:goal_id/stop", orchHandlers.StopTradingHandler())
			}
		}
	}
}
