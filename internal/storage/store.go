package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"replaywatch/internal/models"
)

var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")
)

// TimeFormat is how timestamps are written to text columns. The fixed
// fraction width keeps lexical order equal to time order.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ListRunsParams contains parameters for listing runs with keyset pagination
type ListRunsParams struct {
	AfterTime time.Time
	AfterID   string
	Limit     int
}

// ListOutcomesParams selects stored outcomes of one run in index order.
type ListOutcomesParams struct {
	RunID         string
	AfterPosition int // -1 to start at the first entry
	FailedOnly    bool
	Limit         int
}

// Storer defines the interface for storage operations on runs and their outcomes
type Storer interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	GetRunByID(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, params ListRunsParams) ([]models.Run, error)

	SaveOutcome(ctx context.Context, runID string, outcome models.EntryOutcome) error
	ListOutcomesByRunID(ctx context.Context, params ListOutcomesParams) ([]models.EntryOutcome, error)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// OutcomeRow is the column form of an EntryOutcome shared by the SQL stores.
type OutcomeRow struct {
	Position            int
	LiveURL             string
	ArchivedURL         string
	LiveRef             string
	ArchivedRef         string
	CorrespondenceScore *float64
	Error               *string
	Report              []byte // JSON PairReport, nil when the entry failed
	LoadNotices         []byte // JSON []Notice
}

// EncodeOutcome flattens an outcome for storage.
func EncodeOutcome(o models.EntryOutcome) (OutcomeRow, error) {
	row := OutcomeRow{
		Position:    o.Entry.Position,
		LiveURL:     o.Entry.LiveURL,
		ArchivedURL: o.Entry.ArchivedURL,
		LiveRef:     o.Entry.LiveCaptureRef,
		ArchivedRef: o.Entry.ArchivedCaptureRef,
	}
	if o.Failed() {
		msg := o.Error
		if msg == "" {
			msg = o.Err.Error()
		}
		row.Error = &msg
	}
	if o.Report != nil {
		score := o.Report.CorrespondenceScore
		row.CorrespondenceScore = &score
		b, err := json.Marshal(o.Report)
		if err != nil {
			return OutcomeRow{}, fmt.Errorf("encoding report for entry %d: %w", o.Entry.Position, err)
		}
		row.Report = b
	}
	notices := o.Notices
	if notices == nil {
		notices = []models.Notice{}
	}
	b, err := json.Marshal(notices)
	if err != nil {
		return OutcomeRow{}, fmt.Errorf("encoding notices for entry %d: %w", o.Entry.Position, err)
	}
	row.LoadNotices = b
	return row, nil
}

// DecodeOutcome rebuilds an outcome read back from storage. Err is left nil;
// the failure text lives in Error.
func DecodeOutcome(row OutcomeRow) (models.EntryOutcome, error) {
	o := models.EntryOutcome{
		Entry: models.IndexEntry{
			Position:           row.Position,
			LiveURL:            row.LiveURL,
			ArchivedURL:        row.ArchivedURL,
			LiveCaptureRef:     row.LiveRef,
			ArchivedCaptureRef: row.ArchivedRef,
		},
	}
	if row.Error != nil {
		o.Error = *row.Error
	}
	if len(row.Report) > 0 {
		var r models.PairReport
		if err := json.Unmarshal(row.Report, &r); err != nil {
			return models.EntryOutcome{}, fmt.Errorf("decoding report for entry %d: %w", row.Position, err)
		}
		o.Report = &r
	}
	if len(row.LoadNotices) > 0 {
		if err := json.Unmarshal(row.LoadNotices, &o.Notices); err != nil {
			return models.EntryOutcome{}, fmt.Errorf("decoding notices for entry %d: %w", row.Position, err)
		}
		if len(o.Notices) == 0 {
			o.Notices = nil
		}
	}
	return o, nil
}
