package simulation

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/services/simulator/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

// Client calls SimulationService and decodes its Struct payloads.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// RunSimulation starts a run and blocks until its final frame. progress may
// be nil.
func (c *Client) RunSimulation(ctx context.Context, req domain.RunRequest, progress batch.ProgressFunc, opts ...grpc.CallOption) (domain.Run, error) {
	in, err := structpb.NewStruct(encodeRunRequest(req))
	if err != nil {
		return domain.Run{}, fmt.Errorf("encode run request: %w", err)
	}
	stream, err := c.cc.NewStream(ctx, &SimulationServiceDesc.Streams[0], runSimulationMethod, opts...)
	if err != nil {
		return domain.Run{}, err
	}
	frames := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := frames.SendMsg(in); err != nil {
		return domain.Run{}, err
	}
	if err := frames.CloseSend(); err != nil {
		return domain.Run{}, err
	}

	for {
		frame, err := frames.Recv()
		if stderrors.Is(err, io.EOF) {
			return domain.Run{}, fmt.Errorf("run stream closed without a result")
		}
		if err != nil {
			return domain.Run{}, err
		}
		if p, ok := structField(frame, fieldProgress); ok {
			if progress != nil {
				progress(int(number(p, "completed")), int(number(p, "total")))
			}
			continue
		}
		if r, ok := structField(frame, fieldRun); ok {
			return decodeRun(r), nil
		}
	}
}

// RunDetail is a run together with its optional profit histogram.
type RunDetail struct {
	domain.Run
	ProfitHistogram []stats.Bin
}

// GetRun loads a run. bins > 0 requests a profit histogram.
func (c *Client) GetRun(ctx context.Context, runID string, bins int, opts ...grpc.CallOption) (RunDetail, error) {
	out, err := c.invoke(ctx, getRunMethod, map[string]any{fieldRunID: runID, fieldHistogramBins: bins}, opts...)
	if err != nil {
		return RunDetail{}, err
	}
	r, _ := structField(out, fieldRun)
	return RunDetail{Run: decodeRun(r), ProfitHistogram: decodeHistogram(r)}, nil
}

// ListRuns lists recent runs; limit <= 0 uses the server default.
func (c *Client) ListRuns(ctx context.Context, limit int, opts ...grpc.CallOption) ([]storage.RunRecord, error) {
	out, err := c.invoke(ctx, listRunsMethod, map[string]any{fieldLimit: limit}, opts...)
	if err != nil {
		return nil, err
	}
	values := out.GetFields()[fieldRuns].GetListValue().GetValues()
	runs := make([]storage.RunRecord, 0, len(values))
	for _, v := range values {
		runs = append(runs, decodeRecord(v.GetStructValue()))
	}
	return runs, nil
}

// ListSessions fetches one page of sessions.
func (c *Client) ListSessions(ctx context.Context, runID, filter string, pageSize int32, pageToken string, opts ...grpc.CallOption) (domain.SessionPage, error) {
	out, err := c.invoke(ctx, listSessionsMethod, map[string]any{
		fieldRunID:     runID,
		fieldFilter:    filter,
		fieldPageSize:  pageSize,
		fieldPageToken: pageToken,
	}, opts...)
	if err != nil {
		return domain.SessionPage{}, err
	}
	values := out.GetFields()[fieldSessions].GetListValue().GetValues()
	page := domain.SessionPage{NextPageToken: text(out, fieldNextPageToken)}
	for _, v := range values {
		page.Sessions = append(page.Sessions, decodeSession(v.GetStructValue()))
	}
	return page, nil
}

// ListSettings lists the settings the server can simulate.
func (c *Client) ListSettings(ctx context.Context, opts ...grpc.CallOption) ([]int, error) {
	out, err := c.invoke(ctx, listSettingsMethod, map[string]any{}, opts...)
	if err != nil {
		return nil, err
	}
	values := out.GetFields()[fieldSettings].GetListValue().GetValues()
	settings := make([]int, 0, len(values))
	for _, v := range values {
		settings = append(settings, int(v.GetNumberValue()))
	}
	return settings, nil
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
