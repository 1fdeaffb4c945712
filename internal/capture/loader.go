package capture

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"replaywatch/internal/models"
)

// URLErrorStatus stands in for a request that never got a response.
const URLErrorStatus = "URLError"

// CaptureLoader resolves a capture reference to its request records.
type CaptureLoader interface {
	Load(ctx context.Context, ref string) ([]models.RequestRecord, []models.Notice, error)
}

// DirLoader reads captures stored as files under one base directory.
// The format follows the extension: .har, .json, .jsonl, and CSV otherwise.
type DirLoader struct {
	baseDir string
	origin  models.Origin
}

// NewDirLoader creates a loader for captures in baseDir tagged with origin.
func NewDirLoader(baseDir string, origin models.Origin) *DirLoader {
	return &DirLoader{baseDir: baseDir, origin: origin}
}

// Load reads the capture file named by ref. Records without a URL are
// skipped with a notice; an unreadable file wraps ErrMissingInput.
func (l *DirLoader) Load(ctx context.Context, ref string) ([]models.RequestRecord, []models.Notice, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(l.baseDir, filepath.FromSlash(ref))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s capture %s: %v", ErrMissingInput, l.origin, ref, err)
	}

	var records []models.RequestRecord
	var notices []models.Notice
	switch strings.ToLower(filepath.Ext(path)) {
	case ".har":
		records, notices, err = parseHAR(data, ref)
	case ".json", ".jsonl", ".ndjson":
		records, notices, err = parseJSON(data, ref)
	default:
		records, notices, err = parseCSV(bytes.NewReader(data), ref)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s capture %s: %v", ErrMissingInput, l.origin, ref, err)
	}
	for i := range records {
		records[i].Origin = l.origin
	}
	return records, notices, nil
}

// parseCSV reads a capture with a header row. Only the url and status_code
// columns are used.
func parseCSV(r io.Reader, ref string) ([]models.RequestRecord, []models.Notice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	urlCol, statusCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "url":
			urlCol = i
		case "status_code":
			statusCol = i
		}
	}
	if urlCol < 0 || statusCol < 0 {
		return nil, nil, fmt.Errorf("header %q lacks url and status_code columns", header)
	}

	var records []models.RequestRecord
	var notices []models.Notice
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				notices = append(notices, parseErrorNotice(ref, perr))
				continue
			}
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(row) <= max(urlCol, statusCol) || strings.TrimSpace(row[urlCol]) == "" {
			notices = append(notices, malformed(fmt.Sprintf("%s line %d", ref, line), "missing url or status_code"))
			continue
		}
		records = append(records, models.RequestRecord{
			URL:        strings.TrimSpace(row[urlCol]),
			StatusCode: strings.TrimSpace(row[statusCol]),
		})
	}
	return records, notices, nil
}

// parseHAR reads log.entries[].request.url and response.status from a HAR
// 1.2 document. A zero status means the request failed without a response.
func parseHAR(data []byte, ref string) ([]models.RequestRecord, []models.Notice, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("invalid HAR JSON")
	}
	entries := gjson.GetBytes(data, "log.entries")
	if !entries.IsArray() {
		return nil, nil, errors.New("HAR document has no log.entries array")
	}

	var records []models.RequestRecord
	var notices []models.Notice
	entries.ForEach(func(key, e gjson.Result) bool {
		url := strings.TrimSpace(e.Get("request.url").String())
		status := e.Get("response.status")
		if url == "" || !status.Exists() {
			notices = append(notices, malformed(fmt.Sprintf("%s entry %d", ref, key.Int()), "missing request.url or response.status"))
			return true
		}
		code := status.String()
		if status.Int() == 0 {
			code = URLErrorStatus
		}
		records = append(records, models.RequestRecord{URL: url, StatusCode: code})
		return true
	})
	return records, notices, nil
}

// parseJSON reads either an array of objects or one object per line. Each
// object needs url and status_code; status_code may be a string or a number.
func parseJSON(data []byte, ref string) ([]models.RequestRecord, []models.Notice, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, nil
	}

	var items []gjson.Result
	if trimmed[0] == '[' {
		if !gjson.ValidBytes(trimmed) {
			return nil, nil, errors.New("invalid JSON array")
		}
		items = gjson.ParseBytes(trimmed).Array()
	} else {
		for _, line := range bytes.Split(trimmed, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !gjson.ValidBytes(line) {
				items = append(items, gjson.Result{})
				continue
			}
			items = append(items, gjson.ParseBytes(line))
		}
	}

	var records []models.RequestRecord
	var notices []models.Notice
	for i, item := range items {
		url := strings.TrimSpace(item.Get("url").String())
		status := item.Get("status_code")
		if url == "" || !status.Exists() {
			notices = append(notices, malformed(fmt.Sprintf("%s record %d", ref, i+1), "missing url or status_code"))
			continue
		}
		code := status.String()
		if status.Type == gjson.Number {
			code = strconv.FormatInt(status.Int(), 10)
		}
		records = append(records, models.RequestRecord{URL: url, StatusCode: code})
	}
	return records, notices, nil
}
