package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fractalTrader/internal/domain"
)

// DatetimeLayout is the timestamp layout of trade-leg files.
const DatetimeLayout = "2006-01-02 15:04:05"

// TradeLegHeader is the column order of trade-leg files.
var TradeLegHeader = []string{
	"Instrument", "Strategy ID", "Signal", "Entry Datetime", "Entry ID", "Exit ID",
	"Exit Datetime", "Exit Type", "Entry Price", "Exit Price", "Profit/Loss",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTradeLegs writes legs in the trade-leg format to w.
func WriteTradeLegs(w io.Writer, legs []*domain.TradeLeg) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(TradeLegHeader); err != nil {
		return err
	}
	for _, l := range legs {
		err := writer.Write([]string{
			l.Instrument,
			l.StrategyID,
			string(l.Direction),
			l.EntryTime.Format(DatetimeLayout),
			strconv.FormatInt(l.EntryID, 10),
			strconv.Itoa(l.ExitID),
			l.ExitTime.Format(DatetimeLayout),
			string(l.ExitType),
			formatFloat(l.EntryPrice),
			formatFloat(l.ExitPrice),
			formatFloat(l.PNL),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTradeLegsToCSV writes legs to filename, creating its directory.
func WriteTradeLegsToCSV(legs []*domain.TradeLeg, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteTradeLegs(file, legs); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// ReadTradeLegsFromCSV reads a trade-leg file written by WriteTradeLegsToCSV.
func ReadTradeLegsFromCSV(filename string) ([]*domain.TradeLeg, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", filename, err)
	}
	if strings.Join(header, ",") != strings.Join(TradeLegHeader, ",") {
		return nil, fmt.Errorf("unexpected header in %s: %v", filename, header)
	}

	var legs []*domain.TradeLeg
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		leg, err := parseTradeLeg(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func parseTradeLeg(record []string) (*domain.TradeLeg, error) {
	l := &domain.TradeLeg{
		Instrument: record[0],
		StrategyID: record[1],
		Direction:  domain.Direction(record[2]),
	}
	if !l.Direction.IsValid() {
		return nil, fmt.Errorf("invalid signal %q", record[2])
	}

	var err error
	if l.EntryTime, err = time.Parse(DatetimeLayout, record[3]); err != nil {
		return nil, fmt.Errorf("invalid entry datetime: %w", err)
	}
	if l.EntryID, err = strconv.ParseInt(record[4], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid entry id: %w", err)
	}
	if l.ExitID, err = strconv.Atoi(record[5]); err != nil {
		return nil, fmt.Errorf("invalid exit id: %w", err)
	}
	if l.ExitTime, err = time.Parse(DatetimeLayout, record[6]); err != nil {
		return nil, fmt.Errorf("invalid exit datetime: %w", err)
	}
	if l.ExitType, err = domain.ParseExitType(record[7]); err != nil {
		return nil, err
	}
	if l.EntryPrice, err = strconv.ParseFloat(record[8], 64); err != nil {
		return nil, fmt.Errorf("invalid entry price: %w", err)
	}
	if l.ExitPrice, err = strconv.ParseFloat(record[9], 64); err != nil {
		return nil, fmt.Errorf("invalid exit price: %w", err)
	}
	if l.PNL, err = strconv.ParseFloat(record[10], 64); err != nil {
		return nil, fmt.Errorf("invalid profit/loss: %w", err)
	}
	return l, nil
}
