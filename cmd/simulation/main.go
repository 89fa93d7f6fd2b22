package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jcarter/tradepilot/internal/auth"
	"github.com/jcarter/tradepilot/internal/broker"
	"github.com/jcarter/tradepilot/internal/command"
	"github.com/jcarter/tradepilot/internal/database"
	"github.com/jcarter/tradepilot/internal/goals"
	"github.com/jcarter/tradepilot/internal/monitor"
	"github.com/jcarter/tradepilot/internal/orchestrator"
	"github.com/jcarter/tradepilot/internal/session"
	"github.com/jcarter/tradepilot/pkg/middleware"
)

const (
	serverAddress = "http://localhost:8080"
	authSecret    = "simulation-secret-key"
	pollInterval  = 2 * time.Second
	simDuration   = 30 * time.Second
)

var operatorCommands = []string{
	"Make me $500 profit this week",
	"I want to make $1,000 per day from trading",
	"You must increase my portfolio by 20%",
}

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// init configures the logger for the simulation with pretty printing
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// scriptedAnalyzer stands in for the AI collaborator so the simulation does
// not need an API key: it recommends a couple of random trades each session.
type scriptedAnalyzer struct{}

func (a *scriptedAnalyzer) Analyze(prompt string) (string, error) {
	if rand.Intn(5) == 0 {
		return "HOLD: no clear setups today, market conditions unfavorable.", nil
	}

	var b strings.Builder
	b.WriteString("Market analysis suggests the following actions.\n")
	for i := 0; i < rand.Intn(2)+1; i++ {
		symbol := symbols[rand.Intn(len(symbols))]
		qty := rand.Intn(20) + 1
		if rand.Intn(2) == 0 {
			fmt.Fprintf(&b, "BUY %d shares of %s\n", qty, symbol)
		} else {
			fmt.Fprintf(&b, "SELL %d shares of %s\n", qty, symbol)
		}
	}
	return b.String(), nil
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean, median, 95th and 99th percentiles
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives the goal API over HTTP
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":        {name: "Authentication"},
			"command":     {name: "Submit Command"},
			"summary":     {name: "Goals Summary"},
			"leaderboard": {name: "Leaderboard"},
			"report":      {name: "Progress Report"},
			"stop":        {name: "Stop Trading"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// do performs an authenticated request and decodes the envelope data into out
func (sc *simulationClient) do(statKey, method, path string, body, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

func (sc *simulationClient) submitCommand(text string) (string, error) {
	var result struct {
		GoalID      string `json:"goal_id"`
		Description string `json:"description"`
	}
	err := sc.do("command", "POST", "/api/v1/commands", map[string]string{"text": text}, &result)
	if err != nil {
		return "", err
	}
	if result.GoalID == "" {
		return "", fmt.Errorf("no goal ID in response for command %q", text)
	}
	return result.GoalID, nil
}

func (sc *simulationClient) goalsSummary() (*goals.Summary, error) {
	var summary goals.Summary
	if err := sc.do("summary", "GET", "/api/v1/goals/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (sc *simulationClient) leaderboard() ([]monitor.LeaderboardEntry, error) {
	var board []monitor.LeaderboardEntry
	if err := sc.do("leaderboard", "GET", "/api/v1/goals/leaderboard", nil, &board); err != nil {
		return nil, err
	}
	return board, nil
}

func (sc *simulationClient) progressReport(goalID string) (*monitor.Report, error) {
	var report monitor.Report
	if err := sc.do("report", "GET", "/api/v1/goals/"+goalID+"/report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (sc *simulationClient) stopTrading(goalID string) error {
	return sc.do("stop", "POST", "/api/v1/goals/"+goalID+"/stop", nil, nil)
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main starts an in-process server with a scripted analyzer, submits
// operator commands and watches the goals make progress.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	var goalIDs []string
	for _, text := range operatorCommands {
		goalID, err := simClient.submitCommand(text)
		if err != nil {
			log.Error().Err(err).Str("command", text).Msg("Failed to submit command")
			continue
		}
		goalIDs = append(goalIDs, goalID)
		log.Info().Str("goal_id", goalID).Str("command", text).Msg("Goal created from command")
	}

	if len(goalIDs) == 0 {
		log.Fatal().Msg("No goals created, aborting simulation")
	}

	// Watch the workers trade until the simulation window closes
	deadline := time.Now().Add(simDuration)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)

		summary, err := simClient.goalsSummary()
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch summary")
			continue
		}
		log.Info().
			Int("active", summary.ActiveGoals).
			Int("completed", summary.CompletedGoals).
			Float64("avg_progress", summary.AverageProgress).
			Msg("Goals summary")
	}

	// Final standings
	board, err := simClient.leaderboard()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch leaderboard")
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("GOAL TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	for _, entry := range board {
		barLength := int(entry.Progress / 5)
		if barLength > 20 {
			barLength = 20
		}
		if barLength < 0 {
			barLength = 0
		}
		bar := strings.Repeat("#", barLength) + strings.Repeat(".", 20-barLength)
		fmt.Printf("%-12s [%s] %6.1f%%  $%.2f of $%.2f  win rate %.0f%%\n",
			entry.GoalID[:12], bar, entry.Progress, entry.Current, entry.Target, entry.WinRate*100)
	}

	for _, goalID := range goalIDs {
		report, err := simClient.progressReport(goalID)
		if err != nil {
			log.Error().Err(err).Str("goal_id", goalID).Msg("Failed to fetch report")
			continue
		}
		fmt.Printf("\n%s (%s)\n", report.Description, report.Status)
		fmt.Printf("  progress: %.1f%%  trend: %s  trades(7d): %d  pnl(7d): $%.2f\n",
			report.Progress, report.Trend.Trend, report.Metrics.TotalTrades, report.Metrics.TotalProfit)
		for _, rec := range report.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}

		if err := simClient.stopTrading(goalID); err != nil {
			log.Debug().Err(err).Str("goal_id", goalID).Msg("Worker already stopped")
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	simClient.printPerformanceStats()
}

// startServer wires and runs the goal trading API with simulation-friendly
// settings: fast polling, extended hours and a scripted analyzer.
func startServer() error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	store := goals.NewService(db)

	quotes := broker.NewQuoteService()
	executor := broker.NewExecutor(quotes)
	clock := broker.NewClock()
	runner := session.NewRunner(store, &scriptedAnalyzer{}, executor)

	orch := orchestrator.New(store, runner, clock, pollInterval)
	orch.EnableExtendedHours()

	progressMonitor := monitor.New(store, pollInterval)
	progressMonitor.OnNotification(func(n monitor.Notification) {
		log.Info().Str("goal_id", n.GoalID).Int("milestone", n.Milestone).Msg(n.Message)
	})

	authService := auth.NewService(authSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	router := gin.Default()

	authHandlers := auth.NewGinHandlers(authService)
	goalHandlers := goals.NewGinHandlers(store)
	commandHandlers := command.NewGinHandlers(command.NewRecognizer(), store, orch)
	orchHandlers := orchestrator.NewGinHandlers(orch)
	monitorHandlers := monitor.NewGinHandlers(progressMonitor)

	setupRoutes(router, authHandlers, goalHandlers, commandHandlers, orchHandlers, monitorHandlers)

	go progressMonitor.Start(context.Background())

	return router.Run(":8080")
}

// setupRoutes mirrors the server's route layout
func setupRoutes(
	router *gin.Engine,
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
