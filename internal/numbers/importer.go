package numbers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const csvNumberHeader = "phone_number"

var ErrMissingCSVColumn = errors.New("numbers: csv header phone_number not found")

// ImportResult is the outcome of a bulk import.
// Invalid or duplicate values count as failed; they never abort the import.
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// Importer normalizes raw values and stores them as active numbers.
type Importer struct {
	repo Repository
	log  *slog.Logger
}

func NewImporter(repo Repository, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{repo: repo, log: log}
}

// ImportText imports a newline-separated paste. Blank lines are skipped.
func (im *Importer) ImportText(ctx context.Context, text string) (ImportResult, error) {
	var values []string
	for _, line := range strings.Split(text, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			values = append(values, v)
		}
	}
	return im.ImportValues(ctx, values)
}

// ImportCSV imports the phone_number column of a CSV file with a header row.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportResult{}, ErrMissingCSVColumn
		}
		return ImportResult{}, fmt.Errorf("numbers: read csv header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), csvNumberHeader) {
			col = i
			break
		}
	}
	if col < 0 {
		return ImportResult{}, ErrMissingCSVColumn
	}

	var values []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportResult{}, fmt.Errorf("numbers: read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[col]); v != "" {
			values = append(values, v)
		}
	}
	return im.ImportValues(ctx, values)
}

// ImportValues normalizes and stores each value. Only store faults are returned as errors.
func (im *Importer) ImportValues(ctx context.Context, values []string) (ImportResult, error) {
	var res ImportResult
	for _, raw := range values {
		number := Normalize(raw)
		_, err := im.repo.Create(ctx, PhoneNumber{Number: number, Status: StatusActive})
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidFormat):
			im.log.Info("number import skipped", "raw", raw, "number", number, "err", err)
			res.Failed++
		default:
			return res, err
		}
	}
	return res, nil
}
