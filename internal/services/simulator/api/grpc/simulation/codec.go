package simulation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/services/simulator/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

// Field names shared by server and client.
const (
	fieldSetting       = "setting"
	fieldSimulations   = "simulations"
	fieldGames         = "games_per_session"
	fieldCoinsPer1000  = "coins_per_1000"
	fieldExchangeRate  = "exchange_rate"
	fieldSeed          = "seed"
	fieldWorkers       = "workers"
	fieldProfitFormula = "profit_formula"
	fieldCancelPolicy  = "cancel_policy"
	fieldRunID         = "run_id"
	fieldFilter        = "filter"
	fieldPageSize      = "page_size"
	fieldPageToken     = "page_token"
	fieldNextPageToken = "next_page_token"
	fieldHistogramBins = "histogram_bins"
	fieldLimit         = "limit"
	fieldProgress      = "progress"
	fieldRun           = "run"
	fieldRuns          = "runs"
	fieldSessions      = "sessions"
	fieldSettings      = "settings"
)

// fieldError reports a malformed request field.
type fieldError struct {
	Field  string
	Reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func numberField(s *structpb.Struct, name string) (float64, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, false, &fieldError{Field: name, Reason: "must be a number"}
	}
	return n.NumberValue, true, nil
}

func intField(s *structpb.Struct, name string) (int64, bool, error) {
	f, ok, err := numberField(s, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false, &fieldError{Field: name, Reason: "must be an integer"}
	}
	return int64(f), true, nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return strings.TrimSpace(kind.StringValue), nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", &fieldError{Field: name, Reason: "must be a string"}
	}
}

func structField(s *structpb.Struct, name string) (*structpb.Struct, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, false
	}
	inner := v.GetStructValue()
	return inner, inner != nil
}

// decodeRunRequest reads a RunSimulation request. Missing numeric fields
// stay zero and are rejected by the batch validation.
func decodeRunRequest(s *structpb.Struct) (domain.RunRequest, error) {
	var req domain.RunRequest
	ints := []struct {
		name string
		dst  *int
	}{
		{fieldSetting, &req.Setting},
		{fieldSimulations, &req.Simulations},
		{fieldGames, &req.Games},
		{fieldCoinsPer1000, &req.CoinsPer1000},
		{fieldWorkers, &req.Workers},
	}
	for _, f := range ints {
		v, _, err := intField(s, f.name)
		if err != nil {
			return domain.RunRequest{}, err
		}
		*f.dst = int(v)
	}
	rate, _, err := numberField(s, fieldExchangeRate)
	if err != nil {
		return domain.RunRequest{}, err
	}
	req.ExchangeRate = rate

	seed, ok, err := intField(s, fieldSeed)
	if err != nil {
		return domain.RunRequest{}, err
	}
	if ok {
		if seed < 0 || seed > math.MaxUint32 {
			return domain.RunRequest{}, &fieldError{Field: fieldSeed, Reason: "must fit in 32 bits"}
		}
		v := uint32(seed)
		req.Seed = &v
	}

	label, err := stringField(s, fieldProfitFormula)
	if err != nil {
		return domain.RunRequest{}, err
	}
	if req.Profit, err = session.ParseProfitFormula(label); err != nil {
		return domain.RunRequest{}, &fieldError{Field: fieldProfitFormula, Reason: "must be canonical or exchange"}
	}
	label, err = stringField(s, fieldCancelPolicy)
	if err != nil {
		return domain.RunRequest{}, err
	}
	if req.CancelPolicy, err = batch.ParseCancelPolicy(label); err != nil {
		return domain.RunRequest{}, &fieldError{Field: fieldCancelPolicy, Reason: "must be partial or discard"}
	}
	return req, nil
}

func encodeRunRequest(req domain.RunRequest) map[string]any {
	out := map[string]any{
		fieldSetting:      req.Setting,
		fieldSimulations:  req.Simulations,
		fieldGames:        req.Games,
		fieldCoinsPer1000: req.CoinsPer1000,
		fieldExchangeRate: req.ExchangeRate,
		fieldWorkers:      req.Workers,
		fieldCancelPolicy: req.CancelPolicy.String(),
	}
	if req.Profit != session.ProfitUnspecified {
		out[fieldProfitFormula] = req.Profit.String()
	}
	if req.Seed != nil {
		out[fieldSeed] = int64(*req.Seed)
	}
	return out
}

func encodeSummary(s stats.Summary) map[string]any {
	return map[string]any{
		"count":  s.Count,
		"mean":   s.Mean,
		"median": s.Median,
		"min":    s.Min,
		"max":    s.Max,
	}
}

func decodeSummary(s *structpb.Struct) stats.Summary {
	return stats.Summary{
		Count:  int(number(s, "count")),
		Mean:   number(s, "mean"),
		Median: int64(number(s, "median")),
		Min:    int64(number(s, "min")),
		Max:    int64(number(s, "max")),
	}
}

func encodeRecord(r storage.RunRecord) map[string]any {
	return map[string]any{
		fieldRunID:         r.ID,
		fieldSetting:       r.Setting,
		fieldSimulations:   r.Simulations,
		fieldGames:         r.Games,
		fieldCoinsPer1000:  r.CoinsPer1000,
		fieldExchangeRate:  r.ExchangeRate,
		fieldProfitFormula: r.ProfitFormula,
		fieldSeed:          int64(r.Seed),
		"seed_source":      r.SeedSource,
		fieldWorkers:       r.Workers,
		"status":           r.Status,
		"completed":        r.Completed,
		"role_total":       r.RoleTotal,
		"created_at":       r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":      r.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRecord(s *structpb.Struct) storage.RunRecord {
	return storage.RunRecord{
		ID:            text(s, fieldRunID),
		Setting:       int(number(s, fieldSetting)),
		Simulations:   int(number(s, fieldSimulations)),
		Games:         int(number(s, fieldGames)),
		CoinsPer1000:  int(number(s, fieldCoinsPer1000)),
		ExchangeRate:  number(s, fieldExchangeRate),
		ProfitFormula: text(s, fieldProfitFormula),
		Seed:          uint32(number(s, fieldSeed)),
		SeedSource:    text(s, "seed_source"),
		Workers:       int(number(s, fieldWorkers)),
		Status:        text(s, "status"),
		Completed:     int(number(s, "completed")),
		RoleTotal:     number(s, "role_total"),
		CreatedAt:     timestamp(s, "created_at"),
		FinishedAt:    timestamp(s, "finished_at"),
	}
}

// encodeRun renders a run with its summary and, when bins > 0, a profit
// histogram.
func encodeRun(run domain.Run, histogram []stats.Bin) map[string]any {
	out := encodeRecord(run.Record)
	out["summary"] = map[string]any{
		fieldSessions:  run.Report.Sessions,
		"major_total":  run.Report.MajorTotal,
		"minor_total":  run.Report.MinorTotal,
		"invested_yen": encodeSummary(run.Report.InvestedYen),
		"final_coins":  encodeSummary(run.Report.FinalCoins),
		"diff_coins":   encodeSummary(run.Report.DiffCoins),
		"profit_yen":   encodeSummary(run.Report.ProfitYen),
	}
	if len(histogram) > 0 {
		bins := make([]any, 0, len(histogram))
		for _, b := range histogram {
			bins = append(bins, map[string]any{"lower": b.Lower, "upper": b.Upper, "count": b.Count})
		}
		out["profit_histogram"] = bins
	}
	return out
}

func decodeRun(s *structpb.Struct) domain.Run {
	run := domain.Run{Record: decodeRecord(s)}
	summary, ok := structField(s, "summary")
	if !ok {
		return run
	}
	run.Report = stats.BatchReport{
		Sessions:   int(number(summary, fieldSessions)),
		MajorTotal: int(number(summary, "major_total")),
		MinorTotal: int(number(summary, "minor_total")),
	}
	if v, ok := structField(summary, "invested_yen"); ok {
		run.Report.InvestedYen = decodeSummary(v)
	}
	if v, ok := structField(summary, "final_coins"); ok {
		run.Report.FinalCoins = decodeSummary(v)
	}
	if v, ok := structField(summary, "diff_coins"); ok {
		run.Report.DiffCoins = decodeSummary(v)
	}
	if v, ok := structField(summary, "profit_yen"); ok {
		run.Report.ProfitYen = decodeSummary(v)
	}
	return run
}

func decodeHistogram(s *structpb.Struct) []stats.Bin {
	list := s.GetFields()["profit_histogram"].GetListValue()
	if list == nil {
		return nil
	}
	bins := make([]stats.Bin, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		b := v.GetStructValue()
		bins = append(bins, stats.Bin{Lower: number(b, "lower"), Upper: number(b, "upper"), Count: int(number(b, "count"))})
	}
	return bins
}

func encodeSession(r session.Result) map[string]any {
	return map[string]any{
		"index":        r.Index,
		"major_count":  r.MajorCount,
		"minor_count":  r.MinorCount,
		"final_coins":  r.FinalCoins,
		"invested_yen": r.InvestedYen,
		"diff_coins":   r.DiffCoins,
		"profit_yen":   r.ProfitYen,
	}
}

func decodeSession(s *structpb.Struct) session.Result {
	return session.Result{
		Index:       int(number(s, "index")),
		MajorCount:  int(number(s, "major_count")),
		MinorCount:  int(number(s, "minor_count")),
		FinalCoins:  int64(number(s, "final_coins")),
		InvestedYen: int64(number(s, "invested_yen")),
		DiffCoins:   int64(number(s, "diff_coins")),
		ProfitYen:   int64(number(s, "profit_yen")),
	}
}

func number(s *structpb.Struct, name string) float64 {
	return s.GetFields()[name].GetNumberValue()
}

func text(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func timestamp(s *structpb.Struct, name string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, text(s, name))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
