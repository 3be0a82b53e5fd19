package roletable

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/core/session"
)

// SessionHeader is the header row of a session export.
var SessionHeader = []string{"シミュレーションNo", "ゲーム数", "BIG回数", "REG回数", "差枚数", "最終所持メダル", "投資金額", "収支"}

var rowHeader = []string{"設定", "役名", "出現率", "獲得枚数", "区分"}

// WriteSessions writes one line per session in the given order.
func WriteSessions(w io.Writer, games int, sessions []session.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SessionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	gameCount := strconv.Itoa(games)
	for _, s := range sessions {
		record := []string{
			strconv.Itoa(s.Index),
			gameCount,
			strconv.Itoa(s.MajorCount),
			strconv.Itoa(s.MinorCount),
			strconv.FormatInt(s.DiffCoins, 10),
			strconv.FormatInt(s.FinalCoins, 10),
			strconv.FormatInt(s.InvestedYen, 10),
			strconv.FormatInt(s.ProfitYen, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write session %d: %w", s.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRows writes rows in the format Parse reads. Categories left
// unspecified are written as an empty cell.
func WriteRows(w io.Writer, rows []roles.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		category := ""
		if row.Category != roles.CategoryUnspecified {
			category = row.Category.String()
		}
		record := []string{
			strconv.Itoa(row.Setting),
			row.Name,
			strconv.Itoa(row.Count),
			strconv.Itoa(row.Payout),
			category,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write role %s: %w", row.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
