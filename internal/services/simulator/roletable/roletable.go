// Package roletable reads role tables from CSV and writes session results
// back out as CSV.
package roletable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/louisbranch/slotsim/internal/core/roles"
)

// Column keys.
const (
	colSetting  = "setting"
	colName     = "name"
	colCount    = "count"
	colPayout   = "payout"
	colCategory = "category"
)

var headerAliases = map[string]string{
	"設定":       colSetting,
	"setting":  colSetting,
	"役名":       colName,
	"name":     colName,
	"出現率":      colCount,
	"count":    colCount,
	"獲得枚数":     colPayout,
	"payout":   colPayout,
	"区分":       colCategory,
	"category": colCategory,
}

var requiredColumns = []string{colSetting, colName, colCount, colPayout}

// ErrMissingColumn reports a header without a required column.
var ErrMissingColumn = errors.New("missing required column")

// ParseError locates a problem in the CSV input.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a role table. The first record is the header; columns are
// matched by name, so order does not matter and unknown columns are ignored.
func Parse(r io.Reader) ([]roles.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: ErrMissingColumn}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	var rows []roles.Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		row, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadFile parses the role table at path.
func LoadFile(path string) ([]roles.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open role table: %w", err)
	}
	defer f.Close()
	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse role table %s: %w", path, err)
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		key, ok := headerAliases[strings.ToLower(name)]
		if !ok {
			continue
		}
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[key] = i
	}
	for _, key := range requiredColumns {
		if _, ok := index[key]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, key)
		}
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int, line int) (roles.Row, error) {
	field := func(key string) string {
		i, ok := index[key]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(key string) (int, error) {
		v, err := strconv.Atoi(field(key))
		if err != nil {
			return 0, &ParseError{Line: line, Column: key, Err: err}
		}
		return v, nil
	}

	var row roles.Row
	var err error
	if row.Setting, err = number(colSetting); err != nil {
		return roles.Row{}, err
	}
	row.Name = field(colName)
	if row.Name == "" {
		return roles.Row{}, &ParseError{Line: line, Column: colName, Err: roles.ErrEmptyName}
	}
	if row.Count, err = number(colCount); err != nil {
		return roles.Row{}, err
	}
	if row.Payout, err = number(colPayout); err != nil {
		return roles.Row{}, err
	}
	if label := field(colCategory); label != "" {
		if row.Category, err = roles.ParseCategory(label); err != nil {
			return roles.Row{}, &ParseError{Line: line, Column: colCategory, Err: err}
		}
	}
	return row, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
