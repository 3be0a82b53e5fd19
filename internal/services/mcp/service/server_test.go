package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/services/mcp/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/api/grpc/simulation"
	simdomain "github.com/louisbranch/slotsim/internal/services/simulator/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

type fakeSimulationClient struct {
	mu      sync.Mutex
	lastRun simdomain.RunRequest
	run     simdomain.Run
	err     error
}

func (f *fakeSimulationClient) RunSimulation(_ context.Context, req simdomain.RunRequest, progress batch.ProgressFunc, _ ...grpc.CallOption) (simdomain.Run, error) {
	f.mu.Lock()
	f.lastRun = req
	f.mu.Unlock()
	if f.err != nil {
		return simdomain.Run{}, f.err
	}
	if progress != nil {
		for i := 1; i <= req.Simulations; i++ {
			progress(i, req.Simulations)
		}
	}
	return f.run, nil
}

func (f *fakeSimulationClient) GetRun(_ context.Context, runID string, bins int, _ ...grpc.CallOption) (simulation.RunDetail, error) {
	if f.err != nil {
		return simulation.RunDetail{}, f.err
	}
	detail := simulation.RunDetail{Run: f.run}
	detail.Record.ID = runID
	if bins > 0 {
		detail.ProfitHistogram = []stats.Bin{{Lower: -100, Upper: 0, Count: 2}, {Lower: 0, Upper: 100, Count: 1}}
	}
	return detail, nil
}

func (f *fakeSimulationClient) ListSessions(_ context.Context, _ string, _ string, _ int32, _ string, _ ...grpc.CallOption) (simdomain.SessionPage, error) {
	return simdomain.SessionPage{Sessions: []session.Result{{Index: 1, ProfitYen: -20}}, NextPageToken: "next"}, nil
}

func (f *fakeSimulationClient) ListSettings(context.Context, ...grpc.CallOption) ([]int, error) {
	return []int{1, 6}, nil
}

func sampleRun() simdomain.Run {
	return simdomain.Run{
		Record: storage.RunRecord{ID: "run-1", Setting: 6, Simulations: 3, Games: 100, Seed: 9, SeedSource: "client", Status: "completed", Completed: 3, ProfitFormula: "canonical"},
		Report: stats.BatchReport{Sessions: 3, MajorTotal: 2, ProfitYen: stats.Summary{Count: 3, Mean: -10, Median: -5, Min: -40, Max: 15}},
	}
}

type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func connect(t *testing.T, client domain.SimulationClient, progress *progressLog) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := newMCPServer(client)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	var opts *mcp.ClientOptions
	if progress != nil {
		opts = &mcp.ClientOptions{
			ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
				progress.mu.Lock()
				progress.values = append(progress.values, req.Params.Progress)
				progress.mu.Unlock()
			},
		}
	}
	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, opts)
	clientSession, err := mcpClient.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Wait()
	})
	return clientSession
}

func decodeStructured(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %+v", result.Content)
	}
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
}

func TestToolsAreRegistered(t *testing.T) {
	cs := connect(t, &fakeSimulationClient{run: sampleRun()}, nil)
	tools, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"run_simulation", "get_run", "list_sessions", "list_settings"} {
		if !names[want] {
			t.Fatalf("tool %s missing from %v", want, names)
		}
	}
}

func TestRunSimulationTool(t *testing.T) {
	fake := &fakeSimulationClient{run: sampleRun()}
	progress := &progressLog{}
	cs := connect(t, fake, progress)

	params := &mcp.CallToolParams{
		Name: "run_simulation",
		Arguments: map[string]any{
			"setting":           6,
			"simulations":       3,
			"games_per_session": 100,
			"seed":              9,
		},
	}
	params.SetProgressToken("run-progress")
	result, err := cs.CallTool(context.Background(), params)
	if err != nil {
		t.Fatalf("call run_simulation: %v", err)
	}
	var out domain.RunResult
	decodeStructured(t, result, &out)
	if out.RunID != "run-1" || out.Completed != 3 || out.ProfitYen.Min != -40 {
		t.Fatalf("result = %+v", out)
	}

	fake.mu.Lock()
	req := fake.lastRun
	fake.mu.Unlock()
	if req.CoinsPer1000 != 50 || req.ExchangeRate != 1000 || req.Seed == nil || *req.Seed != 9 || req.Profit != session.ProfitCanonical || req.CancelPolicy != batch.CancelReturnPartial {
		t.Fatalf("forwarded request = %+v", req)
	}
	if result.Meta["x-slotsim-request-id"] == nil {
		t.Fatalf("result meta = %v", result.Meta)
	}
}

func TestRunSimulationToolErrors(t *testing.T) {
	cs := connect(t, &fakeSimulationClient{err: errors.New("setting 4 has no roles")}, nil)
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_simulation",
		Arguments: map[string]any{"setting": 4, "simulations": 1, "games_per_session": 1},
	})
	if err != nil {
		t.Fatalf("call run_simulation: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error result")
	}

	result, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_simulation",
		Arguments: map[string]any{"setting": 1, "simulations": 1, "games_per_session": 1, "profit_formula": "gross"},
	})
	if err != nil {
		t.Fatalf("call run_simulation: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown profit formula")
	}
}

func TestRunSimulationToolCancelPolicy(t *testing.T) {
	fake := &fakeSimulationClient{run: sampleRun()}
	cs := connect(t, fake, nil)

	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_simulation",
		Arguments: map[string]any{"setting": 6, "simulations": 3, "games_per_session": 100, "cancel_policy": "discard"},
	})
	if err != nil {
		t.Fatalf("call run_simulation: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}
	fake.mu.Lock()
	policy := fake.lastRun.CancelPolicy
	fake.mu.Unlock()
	if policy != batch.CancelDiscard {
		t.Fatalf("cancel policy = %v, want discard", policy)
	}

	result, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_simulation",
		Arguments: map[string]any{"setting": 6, "simulations": 3, "games_per_session": 100, "cancel_policy": "abandon"},
	})
	if err != nil {
		t.Fatalf("call run_simulation: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown cancel policy")
	}
}

func TestGetRunAndListTools(t *testing.T) {
	cs := connect(t, &fakeSimulationClient{run: sampleRun()}, nil)
	ctx := context.Background()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_run", Arguments: map[string]any{"run_id": "abc", "histogram_bins": 2}})
	if err != nil {
		t.Fatalf("call get_run: %v", err)
	}
	var run domain.RunResult
	decodeStructured(t, result, &run)
	if run.RunID != "abc" || len(run.ProfitHistogram) != 2 {
		t.Fatalf("get_run = %+v", run)
	}

	result, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "get_run", Arguments: map[string]any{"run_id": " "}})
	if err != nil {
		t.Fatalf("call get_run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for blank run id")
	}

	result, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "list_sessions", Arguments: map[string]any{"run_id": "abc"}})
	if err != nil {
		t.Fatalf("call list_sessions: %v", err)
	}
	var page domain.ListSessionsResult
	decodeStructured(t, result, &page)
	if len(page.Sessions) != 1 || page.Sessions[0].ProfitYen != -20 || page.NextPageToken != "next" {
		t.Fatalf("list_sessions = %+v", page)
	}

	result, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "list_settings", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call list_settings: %v", err)
	}
	var settings domain.ListSettingsResult
	decodeStructured(t, result, &settings)
	if len(settings.Settings) != 2 || settings.Settings[1] != 6 {
		t.Fatalf("list_settings = %+v", settings)
	}
}

func TestResources(t *testing.T) {
	cs := connect(t, &fakeSimulationClient{run: sampleRun()}, nil)
	ctx := context.Background()

	res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "slotsim://runs/abc"})
	if err != nil {
		t.Fatalf("read run resource: %v", err)
	}
	var run domain.RunResult
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &run); err != nil {
		t.Fatalf("decode run resource: %v", err)
	}
	if run.RunID != "abc" {
		t.Fatalf("run resource = %+v", run)
	}

	res, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "slotsim://settings"})
	if err != nil {
		t.Fatalf("read settings resource: %v", err)
	}
	var settings domain.ListSettingsResult
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &settings); err != nil {
		t.Fatalf("decode settings resource: %v", err)
	}
	if len(settings.Settings) != 2 {
		t.Fatalf("settings resource = %+v", settings)
	}
}

func TestServeWithTransportRequiresServer(t *testing.T) {
	var nilServer *Server
	if err := nilServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}
	if err := (&Server{}).serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for unconfigured server")
	}
}

func TestGRPCAddressDefault(t *testing.T) {
	if got := grpcAddress(" "); got != "localhost:8090" {
		t.Fatalf("address = %q, want localhost:8090", got)
	}
	if got := grpcAddress("sim:9000"); got != "sim:9000" {
		t.Fatalf("address = %q", got)
	}
}
