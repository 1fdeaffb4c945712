// Package capture reads the index file and the request captures it names.
package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"replaywatch/internal/models"
)

// ErrMissingInput is returned when a file cannot be located or parsed.
var ErrMissingInput = errors.New("missing input")

const indexColumns = 4

// LoadIndex reads the index CSV at path.
func LoadIndex(path string) ([]models.IndexEntry, []models.Notice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening index: %v", ErrMissingInput, err)
	}
	defer f.Close()
	return ReadIndex(f)
}

// ReadIndex parses index rows. The first row is a header and is skipped.
// Each further row needs four columns: live URL, archived URL, live capture
// reference and archived capture reference. Short rows and rows the CSV
// reader rejects are skipped with a notice; extra columns are ignored.
func ReadIndex(r io.Reader) ([]models.IndexEntry, []models.Notice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: reading index header: %v", ErrMissingInput, err)
	}

	var entries []models.IndexEntry
	var notices []models.Notice
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				notices = append(notices, parseErrorNotice("index", perr))
				continue
			}
			return nil, nil, fmt.Errorf("%w: reading index: %v", ErrMissingInput, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) < indexColumns || strings.TrimSpace(row[2]) == "" || strings.TrimSpace(row[3]) == "" {
			notices = append(notices, malformed(fmt.Sprintf("index line %d", line), fmt.Sprintf("expected %d columns with capture references, got %q", indexColumns, row)))
			continue
		}
		entries = append(entries, models.IndexEntry{
			Position:           len(entries),
			LiveURL:            strings.TrimSpace(row[0]),
			ArchivedURL:        strings.TrimSpace(row[1]),
			LiveCaptureRef:     strings.TrimSpace(row[2]),
			ArchivedCaptureRef: strings.TrimSpace(row[3]),
		})
	}
	return entries, notices, nil
}

// parseErrorNotice reports a row the CSV reader rejected. An unbalanced quote
// swallows the lines after it, so the dropped span goes into the detail.
func parseErrorNotice(ref string, perr *csv.ParseError) models.Notice {
	detail := perr.Err.Error()
	if perr.Line > perr.StartLine {
		detail = fmt.Sprintf("%s; lines %d-%d dropped", detail, perr.StartLine, perr.Line)
	}
	return malformed(fmt.Sprintf("%s line %d", ref, perr.StartLine), detail)
}

func malformed(where, detail string) models.Notice {
	return models.Notice{
		Kind:    models.NoticeMalformedRecord,
		Level:   slog.LevelWarn,
		Message: "skipping malformed record in " + where,
		Detail:  detail,
	}
}
