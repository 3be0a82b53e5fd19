package domain

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/platform/errors"
	"github.com/louisbranch/slotsim/internal/platform/grpc/pagination"
	"github.com/louisbranch/slotsim/internal/services/simulator/filter"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

var sessionPageSize = pagination.PageSizeConfig{Default: 100, Max: 1000}

// GetRun loads a run and recomputes its report from the stored sessions.
func (s *Service) GetRun(ctx context.Context, runID string) (Run, error) {
	ctx, span := s.tracer.Start(ctx, "simulator.GetRun")
	defer span.End()

	record, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, storageError(runID, err)
	}
	sessions, err := s.store.AllSessions(ctx, record.ID)
	if err != nil {
		return Run{}, errors.Wrap(errors.CodeUnknown, "load sessions", err)
	}
	return Run{Record: record, Report: stats.ReportSessions(sessions)}, nil
}

// ProfitHistogram bins the yen profit of every stored session of a run.
func (s *Service) ProfitHistogram(ctx context.Context, runID string, bins int) ([]stats.Bin, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, storageError(runID, err)
	}
	sessions, err := s.store.AllSessions(ctx, runID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnknown, "load sessions", err)
	}
	profits := make([]int64, 0, len(sessions))
	for _, r := range sessions {
		profits = append(profits, r.ProfitYen)
	}
	return stats.Histogram(profits, bins), nil
}

// ListRuns lists the most recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnknown, "list runs", err)
	}
	return runs, nil
}

// SessionPage is one page of a session listing.
type SessionPage struct {
	Sessions      []session.Result
	NextPageToken string
}

// ListSessions lists sessions of a run matching an AIP-160 filter.
func (s *Service) ListSessions(ctx context.Context, runID, rawFilter string, pageSize int32, pageToken string) (SessionPage, error) {
	ctx, span := s.tracer.Start(ctx, "simulator.ListSessions")
	defer span.End()

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return SessionPage{}, errors.WithMetadata(errors.CodeInvalidConfig, "run id is required",
			map[string]string{"Reason": "run_id is required"})
	}
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return SessionPage{}, storageError(runID, err)
	}
	cond, err := filter.ParseSessionFilter(rawFilter)
	if err != nil {
		return SessionPage{}, errors.WrapWithMetadata(errors.CodeFilterInvalid, err.Error(),
			map[string]string{"Reason": err.Error()}, err)
	}
	offset, err := pagination.DecodeOffset(pageToken)
	if err != nil {
		return SessionPage{}, errors.WrapWithMetadata(errors.CodeInvalidConfig, err.Error(),
			map[string]string{"Reason": err.Error()}, err)
	}
	limit := pagination.ClampPageSize(pageSize, sessionPageSize)

	// One extra row tells whether another page exists.
	sessions, err := s.store.ListSessions(ctx, storage.SessionQuery{
		RunID:  runID,
		Where:  cond.Clause,
		Params: cond.Params,
		Limit:  limit + 1,
		Offset: offset,
	})
	if err != nil {
		return SessionPage{}, errors.Wrap(errors.CodeUnknown, "list sessions", err)
	}
	page := SessionPage{Sessions: sessions}
	if len(sessions) > limit {
		page.Sessions = sessions[:limit]
		page.NextPageToken = pagination.EncodeOffset(offset + limit)
	}
	return page, nil
}

func storageError(runID string, err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.WrapWithMetadata(errors.CodeNotFound, "run "+runID+" not found",
			map[string]string{"Resource": "run"}, err)
	}
	return errors.Wrap(errors.CodeUnknown, "load run", err)
}
