package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const runURIPrefix = "slotsim://runs/"

// RunResourceTemplate exposes stored runs as slotsim://runs/{run_id}.
func RunResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "simulation_run",
		Title:       "Simulation run",
		Description: "A stored simulation run with summary statistics",
		MIMEType:    "application/json",
		URITemplate: runURIPrefix + "{run_id}",
	}
}

// SettingsResource lists the machine settings of the loaded role table.
func SettingsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "settings",
		Title:       "Machine settings",
		Description: "Settings present in the simulator's role table",
		MIMEType:    "application/json",
		URI:         "slotsim://settings",
	}
}

// RunResourceHandler reads slotsim://runs/{run_id}.
func RunResourceHandler(client SimulationClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("simulation client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("run ID is required; use URI format %s{run_id}", runURIPrefix)
		}
		uri := req.Params.URI
		runID, err := parseRunIDFromURI(uri)
		if err != nil {
			return nil, err
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _, err := NewOutgoingContext(runCtx, "", "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}
		detail, err := client.GetRun(callCtx, runID, 0)
		if err != nil {
			return nil, fmt.Errorf("get run failed: %w", err)
		}
		return jsonResource(uri, runResult(detail.Run, nil))
	}
}

// SettingsResourceHandler reads slotsim://settings.
func SettingsResourceHandler(client SimulationClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("simulation client is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _, err := NewOutgoingContext(runCtx, "", "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}
		settings, err := client.ListSettings(callCtx)
		if err != nil {
			return nil, fmt.Errorf("list settings failed: %w", err)
		}
		uri := SettingsResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		return jsonResource(uri, ListSettingsResult{Settings: settings})
	}
}

func parseRunIDFromURI(uri string) (string, error) {
	runID, ok := strings.CutPrefix(uri, runURIPrefix)
	runID = strings.TrimSpace(runID)
	if !ok || runID == "" || strings.Contains(runID, "/") {
		return "", fmt.Errorf("invalid run URI %q; use %s{run_id}", uri, runURIPrefix)
	}
	return runID, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
