package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fractalTrader/internal/ports"
)

// TimestampLayout is the layout of the TIMESTAMP column in every input file.
const TimestampLayout = "2006-01-02 15:04:05"

const timestampColumn = "TIMESTAMP"

// table is a CSV file indexed by header name.
type table struct {
	path    string
	columns map[string]int
	records [][]string
}

// readTable loads a CSV file and checks that every required column is present.
func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w: empty file", path, ports.ErrMalformedInput)
		}
		return nil, fmt.Errorf("%s: %w: %v", path, ports.ErrMalformedInput, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, name := range header {
		t.columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%s: %w: missing column %s", path, ports.ErrMalformedInput, name)
		}
	}

	t.records, err = r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ports.ErrMalformedInput, err)
	}
	return t, nil
}

// value returns the trimmed cell of column in record; a short record yields "".
func (t *table) value(record []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// timestamp parses the TIMESTAMP cell of record.
func (t *table) timestamp(record []string, line int) (time.Time, error) {
	raw := t.value(record, timestampColumn)
	ts, err := time.ParseInLocation(TimestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s line %d: %w: timestamp %q", t.path, line, ports.ErrMalformedInput, raw)
	}
	return ts, nil
}

// parseBool accepts the spellings indicator exports use. Empty is false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "nan":
		return false, nil
	case "true", "1", "1.0":
		return true, nil
	case "false", "0", "0.0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// parseFloat parses a numeric cell. Empty and NaN cells report ok=false.
func parseFloat(s string) (v float64, ok bool, err error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	return v, true, nil
}
