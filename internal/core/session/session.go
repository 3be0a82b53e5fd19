// Package session simulates one play-through of a fixed number of games.
//
// # Game transition
//
// Each game applies, in order: a top-up when the balance cannot cover the
// ante, the ante debit, one draw from the role table, the payout credit and
// the bonus counters. The balance may only be negative between a debit and the
// next game's top-up check, so a returned FinalCoins below zero can only occur
// when the coin allotment per top-up is smaller than the ante.
//
// # Yielding
//
// Every YieldEvery games the session calls its Yielder, except after the
// last game. Yielding never touches session state; a Yielder error or a done
// context ends the session early and the partial state is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/core/xorshift"
	"github.com/louisbranch/slotsim/internal/core/yield"
	"github.com/shopspring/decimal"
)

const (
	// Ante is the coin cost of one game.
	Ante = 3
	// InvestmentUnit is the yen spent on each top-up.
	InvestmentUnit = 1000
	// DefaultYieldEvery is the number of games between pause points.
	DefaultYieldEvery = 50
)

var (
	// ErrInvalidGames indicates a non-positive game count.
	ErrInvalidGames = errors.New("games per session must be positive")
	// ErrInvalidCoinsPer1000 indicates a non-positive coin allotment.
	ErrInvalidCoinsPer1000 = errors.New("coins per 1000 yen must be positive")
	// ErrInvalidExchangeRate indicates a non-positive or non-finite rate.
	ErrInvalidExchangeRate = errors.New("exchange rate must be a positive number")
	// ErrInvalidProfitFormula indicates an unknown profit formula.
	ErrInvalidProfitFormula = errors.New("unknown profit formula")
	// ErrNilTable indicates a missing role table.
	ErrNilTable = errors.New("role table is required")
	// ErrNilSource indicates a missing random source.
	ErrNilSource = errors.New("random source is required")
)

// ProfitFormula selects how the yen result of a session is computed.
type ProfitFormula int

const (
	// ProfitUnspecified resolves to ProfitCanonical.
	ProfitUnspecified ProfitFormula = iota
	// ProfitCanonical computes round(finalCoins - invested/1000 * exchangeRate).
	ProfitCanonical
	// ProfitExchange computes round(finalCoins * 1000 / exchangeRate - invested).
	ProfitExchange
)

func (f ProfitFormula) String() string {
	switch f {
	case ProfitUnspecified:
		return "unspecified"
	case ProfitCanonical:
		return "canonical"
	case ProfitExchange:
		return "exchange"
	default:
		return "unknown"
	}
}

// ParseProfitFormula maps a formula label to a ProfitFormula.
func ParseProfitFormula(label string) (ProfitFormula, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "canonical":
		return ProfitCanonical, nil
	case "exchange":
		return ProfitExchange, nil
	default:
		return ProfitUnspecified, fmt.Errorf("%w: %q", ErrInvalidProfitFormula, label)
	}
}

// Config describes one session.
type Config struct {
	// Index is the 1-based position of the session in its batch.
	Index        int
	Games        int
	CoinsPer1000 int
	ExchangeRate float64
	Profit       ProfitFormula
	// YieldEvery defaults to DefaultYieldEvery.
	YieldEvery int
	// EmitEvery limits observer events to every Nth game plus the last one.
	// Zero or one emits every game.
	EmitEvery int
}

// Validate checks the parts of cfg that do not depend on a table or source.
func (cfg Config) Validate() error {
	if cfg.Games <= 0 {
		return ErrInvalidGames
	}
	if cfg.CoinsPer1000 <= 0 {
		return ErrInvalidCoinsPer1000
	}
	if cfg.ExchangeRate <= 0 || math.IsNaN(cfg.ExchangeRate) || math.IsInf(cfg.ExchangeRate, 0) {
		return ErrInvalidExchangeRate
	}
	switch cfg.Profit {
	case ProfitUnspecified, ProfitCanonical, ProfitExchange:
	default:
		return ErrInvalidProfitFormula
	}
	return nil
}

// Event is emitted to an Observer after a game.
type Event struct {
	Session     int
	Game        int
	Role        string
	Payout      int
	Coins       int64
	InvestedYen int64
}

// Observer receives per-game events.
type Observer interface {
	ObserveGame(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// ObserveGame implements Observer for ObserverFunc.
func (fn ObserverFunc) ObserveGame(event Event) {
	fn(event)
}

// Result summarizes a finished session.
type Result struct {
	Index       int
	MajorCount  int
	MinorCount  int
	FinalCoins  int64
	InvestedYen int64
	DiffCoins   int64
	ProfitYen   int64
}

type state struct {
	coins    int64
	invested int64
	major    int
	minor    int
}

// Run plays cfg.Games games against table, drawing from src.
//
// obs may be nil. A nil y pauses with yield.Gosched. Run returns the
// context or Yielder error when stopped early.
func Run(ctx context.Context, cfg Config, table *roles.Table, src *xorshift.Source, obs Observer, y yield.Yielder) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if table == nil || table.Len() == 0 {
		return Result{}, ErrNilTable
	}
	if src == nil {
		return Result{}, ErrNilSource
	}
	if ctx == nil {
		ctx = context.Background()
	}
	y = yield.Or(y)
	yieldEvery := cfg.YieldEvery
	if yieldEvery <= 0 {
		yieldEvery = DefaultYieldEvery
	}
	emitEvery := cfg.EmitEvery
	if emitEvery <= 0 {
		emitEvery = 1
	}
	allotment := int64(cfg.CoinsPer1000)

	var st state
	for game := 1; game <= cfg.Games; game++ {
		if st.coins < Ante {
			st.invested += InvestmentUnit
			st.coins += allotment
		}
		st.coins -= Ante

		entry := table.Draw(src)
		st.coins += int64(entry.Payout)

		switch entry.Category {
		case roles.CategoryMajor:
			st.major++
		case roles.CategoryMinor:
			st.minor++
		}

		if obs != nil && (game%emitEvery == 0 || game == cfg.Games) {
			obs.ObserveGame(Event{
				Session:     cfg.Index,
				Game:        game,
				Role:        entry.Name,
				Payout:      entry.Payout,
				Coins:       st.coins,
				InvestedYen: st.invested,
			})
		}

		if game%yieldEvery == 0 && game < cfg.Games {
			err := y.Yield(ctx)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				return Result{}, err
			}
		}
	}

	units := st.invested / InvestmentUnit
	return Result{
		Index:       cfg.Index,
		MajorCount:  st.major,
		MinorCount:  st.minor,
		FinalCoins:  st.coins,
		InvestedYen: st.invested,
		DiffCoins:   st.coins - units*allotment,
		ProfitYen:   Profit(cfg.Profit, st.coins, st.invested, cfg.ExchangeRate),
	}, nil
}

// Profit computes the yen result of a session with the given formula.
// Halves round toward positive infinity.
func Profit(formula ProfitFormula, finalCoins, investedYen int64, exchangeRate float64) int64 {
	coins := decimal.NewFromInt(finalCoins)
	invested := decimal.NewFromInt(investedYen)
	rate := decimal.NewFromFloat(exchangeRate)
	unit := decimal.NewFromInt(InvestmentUnit)

	var value decimal.Decimal
	switch formula {
	case ProfitExchange:
		value = coins.Mul(unit).Div(rate).Sub(invested)
	default:
		value = coins.Sub(invested.Div(unit).Mul(rate))
	}
	return roundHalfUp(value)
}

func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}
