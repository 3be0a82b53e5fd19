package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/services/simulator/api/grpc/simulation"
	simdomain "github.com/louisbranch/slotsim/internal/services/simulator/domain"
)

const (
	defaultCoinsPer1000 = 50
	defaultExchangeRate = 1000
)

// SimulationClient is the simulator API used by the tools.
type SimulationClient interface {
	RunSimulation(ctx context.Context, req simdomain.RunRequest, progress batch.ProgressFunc, opts ...grpc.CallOption) (simdomain.Run, error)
	GetRun(ctx context.Context, runID string, bins int, opts ...grpc.CallOption) (simulation.RunDetail, error)
	ListSessions(ctx context.Context, runID, filter string, pageSize int32, pageToken string, opts ...grpc.CallOption) (simdomain.SessionPage, error)
	ListSettings(ctx context.Context, opts ...grpc.CallOption) ([]int, error)
}

// RunSimulationInput is the run_simulation tool input.
type RunSimulationInput struct {
	Setting         int     `json:"setting" jsonschema:"machine setting to simulate"`
	Simulations     int     `json:"simulations" jsonschema:"number of independent sessions"`
	GamesPerSession int     `json:"games_per_session" jsonschema:"games played in each session"`
	CoinsPer1000    int     `json:"coins_per_1000,omitempty" jsonschema:"coins lent per 1000 yen, default 50"`
	ExchangeRate    float64 `json:"exchange_rate,omitempty" jsonschema:"yen paid out per 1000 coins, default 1000"`
	Seed            *uint32 `json:"seed,omitempty" jsonschema:"optional seed for a reproducible run"`
	Workers         int     `json:"workers,omitempty" jsonschema:"parallel workers; above one gives a different but deterministic stream"`
	ProfitFormula   string  `json:"profit_formula,omitempty" jsonschema:"canonical (default) or exchange"`
	CancelPolicy    string  `json:"cancel_policy,omitempty" jsonschema:"partial (default) keeps completed sessions when cancelled, discard drops them"`
	Locale          string  `json:"locale,omitempty" jsonschema:"preferred locale for error messages, e.g. ja-JP"`
}

// SummaryResult is a statistics summary of one series.
type SummaryResult struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median int64   `json:"median"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
}

// BinResult is one histogram bucket.
type BinResult struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// RunResult describes a stored run.
type RunResult struct {
	RunID           string        `json:"run_id"`
	Setting         int           `json:"setting"`
	Simulations     int           `json:"simulations"`
	GamesPerSession int           `json:"games_per_session"`
	Seed            uint32        `json:"seed"`
	SeedSource      string        `json:"seed_source"`
	Status          string        `json:"status"`
	Completed       int           `json:"completed"`
	ProfitFormula   string        `json:"profit_formula"`
	MajorTotal      int           `json:"major_total"`
	MinorTotal      int           `json:"minor_total"`
	InvestedYen     SummaryResult `json:"invested_yen"`
	FinalCoins      SummaryResult `json:"final_coins"`
	DiffCoins       SummaryResult `json:"diff_coins"`
	ProfitYen       SummaryResult `json:"profit_yen"`
	ProfitHistogram []BinResult   `json:"profit_histogram,omitempty"`
}

// RunSimulationTool defines the run_simulation tool.
func RunSimulationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "run_simulation",
		Description: "Simulates many slot machine sessions for one setting and stores the run",
	}
}

// RunSimulationHandler runs a batch through the simulator, relaying progress
// notifications when the caller sent a progress token.
func RunSimulationHandler(client SimulationClient) mcp.ToolHandlerFor[RunSimulationInput, RunResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunSimulationInput) (*mcp.CallToolResult, RunResult, error) {
		profit, err := session.ParseProfitFormula(input.ProfitFormula)
		if err != nil {
			return nil, RunResult{}, err
		}
		policy, err := batch.ParseCancelPolicy(input.CancelPolicy)
		if err != nil {
			return nil, RunResult{}, err
		}
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcRunTimeout)
		defer cancel()
		callCtx, callMeta, err := NewOutgoingContext(runCtx, invocationID, input.Locale)
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("create request metadata: %w", err)
		}

		runReq := simdomain.RunRequest{
			Setting:      input.Setting,
			Simulations:  input.Simulations,
			Games:        input.GamesPerSession,
			CoinsPer1000: input.CoinsPer1000,
			ExchangeRate: input.ExchangeRate,
			Seed:         input.Seed,
			Workers:      input.Workers,
			Profit:       profit,
			CancelPolicy: policy,
		}
		if runReq.CoinsPer1000 == 0 {
			runReq.CoinsPer1000 = defaultCoinsPer1000
		}
		if runReq.ExchangeRate == 0 {
			runReq.ExchangeRate = defaultExchangeRate
		}

		var progress batch.ProgressFunc
		if req != nil && req.Params != nil && req.Session != nil {
			if token := req.Params.GetProgressToken(); token != nil {
				progress = func(completed, total int) {
					_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
						ProgressToken: token,
						Progress:      float64(completed),
						Total:         float64(total),
						Message:       fmt.Sprintf("%d/%d sessions", completed, total),
					})
				}
			}
		}

		var header metadata.MD
		run, err := client.RunSimulation(callCtx, runReq, progress, grpc.Header(&header))
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("run simulation failed: %w", err)
		}
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header)), runResult(run, nil), nil
	}
}

// GetRunInput is the get_run tool input.
type GetRunInput struct {
	RunID         string `json:"run_id" jsonschema:"identifier returned by run_simulation"`
	HistogramBins int    `json:"histogram_bins,omitempty" jsonschema:"optional number of profit histogram bins"`
	Locale        string `json:"locale,omitempty" jsonschema:"preferred locale for error messages"`
}

// GetRunTool defines the get_run tool.
func GetRunTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_run",
		Description: "Returns a stored simulation run with its summary statistics",
	}
}

// GetRunHandler loads a run from the simulator.
func GetRunHandler(client SimulationClient) mcp.ToolHandlerFor[GetRunInput, RunResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetRunInput) (*mcp.CallToolResult, RunResult, error) {
		runID := strings.TrimSpace(input.RunID)
		if runID == "" {
			return nil, RunResult{}, fmt.Errorf("run_id is required")
		}
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta, err := NewOutgoingContext(runCtx, invocationID, input.Locale)
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("create request metadata: %w", err)
		}

		var header metadata.MD
		detail, err := client.GetRun(callCtx, runID, input.HistogramBins, grpc.Header(&header))
		if err != nil {
			return nil, RunResult{}, fmt.Errorf("get run failed: %w", err)
		}
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header)), runResult(detail.Run, detail.ProfitHistogram), nil
	}
}

// ListSessionsInput is the list_sessions tool input.
type ListSessionsInput struct {
	RunID     string `json:"run_id" jsonschema:"identifier returned by run_simulation"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter, e.g. profit_yen > 0 AND major_count >= 3"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum sessions to return"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous call"`
}

// SessionResult is one session row.
type SessionResult struct {
	Index       int   `json:"index"`
	MajorCount  int   `json:"major_count"`
	MinorCount  int   `json:"minor_count"`
	FinalCoins  int64 `json:"final_coins"`
	InvestedYen int64 `json:"invested_yen"`
	DiffCoins   int64 `json:"diff_coins"`
	ProfitYen   int64 `json:"profit_yen"`
}

// ListSessionsResult is one page of sessions.
type ListSessionsResult struct {
	Sessions      []SessionResult `json:"sessions"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// ListSessionsTool defines the list_sessions tool.
func ListSessionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_sessions",
		Description: "Lists the sessions of a stored run, optionally filtered",
	}
}

// ListSessionsHandler pages through a run's sessions.
func ListSessionsHandler(client SimulationClient) mcp.ToolHandlerFor[ListSessionsInput, ListSessionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, ListSessionsResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta, err := NewOutgoingContext(runCtx, invocationID, "")
		if err != nil {
			return nil, ListSessionsResult{}, fmt.Errorf("create request metadata: %w", err)
		}

		var header metadata.MD
		page, err := client.ListSessions(callCtx, input.RunID, input.Filter, int32(input.PageSize), input.PageToken, grpc.Header(&header))
		if err != nil {
			return nil, ListSessionsResult{}, fmt.Errorf("list sessions failed: %w", err)
		}
		result := ListSessionsResult{
			Sessions:      make([]SessionResult, 0, len(page.Sessions)),
			NextPageToken: page.NextPageToken,
		}
		for _, s := range page.Sessions {
			result.Sessions = append(result.Sessions, SessionResult(s))
		}
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header)), result, nil
	}
}

// ListSettingsResult lists the available settings.
type ListSettingsResult struct {
	Settings []int `json:"settings"`
}

// ListSettingsTool defines the list_settings tool.
func ListSettingsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_settings",
		Description: "Lists the machine settings present in the loaded role table",
	}
}

// ListSettingsHandler returns the simulator's settings.
func ListSettingsHandler(client SimulationClient) mcp.ToolHandlerFor[struct{}, ListSettingsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListSettingsResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, callMeta, err := NewOutgoingContext(runCtx, "", "")
		if err != nil {
			return nil, ListSettingsResult{}, fmt.Errorf("create request metadata: %w", err)
		}
		var header metadata.MD
		settings, err := client.ListSettings(callCtx, grpc.Header(&header))
		if err != nil {
			return nil, ListSettingsResult{}, fmt.Errorf("list settings failed: %w", err)
		}
		return CallToolResultWithMetadata(MergeResponseMetadata(callMeta, header)), ListSettingsResult{Settings: settings}, nil
	}
}

func runResult(run simdomain.Run, histogram []stats.Bin) RunResult {
	result := RunResult{
		RunID:           run.Record.ID,
		Setting:         run.Record.Setting,
		Simulations:     run.Record.Simulations,
		GamesPerSession: run.Record.Games,
		Seed:            run.Record.Seed,
		SeedSource:      run.Record.SeedSource,
		Status:          run.Record.Status,
		Completed:       run.Record.Completed,
		ProfitFormula:   run.Record.ProfitFormula,
		MajorTotal:      run.Report.MajorTotal,
		MinorTotal:      run.Report.MinorTotal,
		InvestedYen:     SummaryResult(run.Report.InvestedYen),
		FinalCoins:      SummaryResult(run.Report.FinalCoins),
		DiffCoins:       SummaryResult(run.Report.DiffCoins),
		ProfitYen:       SummaryResult(run.Report.ProfitYen),
	}
	for _, b := range histogram {
		result.ProfitHistogram = append(result.ProfitHistogram, BinResult(b))
	}
	return result
}
