// Package simulation exposes the simulator domain over gRPC.
package simulation

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/platform/errors"
	"github.com/louisbranch/slotsim/internal/platform/grpc/metadata"
	"github.com/louisbranch/slotsim/internal/platform/timeouts"
	"github.com/louisbranch/slotsim/internal/services/simulator/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

const maxHistogramBins = 200

// Simulator is the domain surface served by Service.
type Simulator interface {
	RunSimulation(ctx context.Context, req domain.RunRequest, progress batch.ProgressFunc) (domain.Run, error)
	GetRun(ctx context.Context, runID string) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
	ListSessions(ctx context.Context, runID, filter string, pageSize int32, pageToken string) (domain.SessionPage, error)
	ProfitHistogram(ctx context.Context, runID string, bins int) ([]stats.Bin, error)
	Settings() []int
}

// Service implements SimulationServiceServer.
type Service struct {
	sim Simulator
}

// NewService creates a gRPC service backed by sim.
func NewService(sim Simulator) *Service {
	return &Service{sim: sim}
}

// RunSimulation runs a batch, streaming progress frames followed by one run
// frame.
func (s *Service) RunSimulation(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	if s == nil || s.sim == nil {
		return status.Error(codes.Internal, "simulator is not configured")
	}
	req, err := decodeRunRequest(in)
	if err != nil {
		return toStatus(ctx, requestError(err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Simulation)
	defer cancel()

	var sendErr error
	progress := func(completed, total int) {
		if sendErr != nil {
			return
		}
		frame, err := structpb.NewStruct(map[string]any{
			fieldProgress: map[string]any{"completed": completed, "total": total},
		})
		if err == nil {
			err = stream.Send(frame)
		}
		if err != nil {
			// The client is gone; stop the batch at its next check.
			sendErr = err
			cancel()
		}
	}

	run, err := s.sim.RunSimulation(ctx, req, progress)
	if err != nil {
		return toStatus(ctx, err)
	}
	if sendErr != nil {
		return status.Errorf(codes.Unavailable, "send progress: %v", sendErr)
	}
	frame, err := structpb.NewStruct(map[string]any{fieldRun: encodeRun(run, nil)})
	if err != nil {
		return status.Errorf(codes.Internal, "encode run: %v", err)
	}
	return stream.Send(frame)
}

// GetRun returns one run with its summary. A positive histogram_bins adds a
// profit histogram.
func (s *Service) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.sim == nil {
		return nil, status.Error(codes.Internal, "simulator is not configured")
	}
	runID, err := stringField(in, fieldRunID)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	if runID == "" {
		return nil, toStatus(ctx, requestError(&fieldError{Field: fieldRunID, Reason: "is required"}))
	}
	bins, _, err := intField(in, fieldHistogramBins)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	if bins < 0 || bins > maxHistogramBins {
		return nil, toStatus(ctx, requestError(&fieldError{Field: fieldHistogramBins, Reason: fmt.Sprintf("must be between 0 and %d", maxHistogramBins)}))
	}

	run, err := s.sim.GetRun(ctx, runID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	var histogram []stats.Bin
	if bins > 0 {
		histogram, err = s.sim.ProfitHistogram(ctx, runID, int(bins))
		if err != nil {
			return nil, toStatus(ctx, err)
		}
	}
	return newStruct(map[string]any{fieldRun: encodeRun(run, histogram)})
}

// ListRuns lists recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.sim == nil {
		return nil, status.Error(codes.Internal, "simulator is not configured")
	}
	limit, _, err := intField(in, fieldLimit)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	runs, err := s.sim.ListRuns(ctx, int(limit))
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	items := make([]any, 0, len(runs))
	for _, r := range runs {
		items = append(items, encodeRecord(r))
	}
	return newStruct(map[string]any{fieldRuns: items})
}

// ListSessions returns one filtered page of a run's sessions.
func (s *Service) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.sim == nil {
		return nil, status.Error(codes.Internal, "simulator is not configured")
	}
	runID, err := stringField(in, fieldRunID)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	filter, err := stringField(in, fieldFilter)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	token, err := stringField(in, fieldPageToken)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}
	size, _, err := intField(in, fieldPageSize)
	if err != nil {
		return nil, toStatus(ctx, requestError(err))
	}

	page, err := s.sim.ListSessions(ctx, runID, filter, int32(size), token)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	items := make([]any, 0, len(page.Sessions))
	for _, r := range page.Sessions {
		items = append(items, encodeSession(r))
	}
	return newStruct(map[string]any{fieldSessions: items, fieldNextPageToken: page.NextPageToken})
}

// ListSettings lists the settings of the loaded role table.
func (s *Service) ListSettings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.sim == nil {
		return nil, status.Error(codes.Internal, "simulator is not configured")
	}
	settings := s.sim.Settings()
	items := make([]any, 0, len(settings))
	for _, v := range settings {
		items = append(items, v)
	}
	return newStruct(map[string]any{fieldSettings: items})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func requestError(err error) error {
	var fe *fieldError
	if stderrors.As(err, &fe) {
		return errors.WrapWithMetadata(errors.CodeInvalidConfig, fe.Error(), map[string]string{"Reason": fe.Error()}, err)
	}
	return err
}

func toStatus(ctx context.Context, err error) error {
	return errors.ToGRPC(err, metadata.LocaleFromContext(ctx))
}
