package models

import (
	"log/slog"
	"time"
)

// Origin tells which capture a record was loaded from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginArchived Origin = "archived"
)

// RequestRecord is one captured HTTP request.
// StatusCode is kept as text because captures mix numeric codes with
// sentinels such as "URLError".
type RequestRecord struct {
	URL        string `json:"url"`
	StatusCode string `json:"status_code"`
	Origin     Origin `json:"-"` // Implied by the collection the record was loaded into
}

// IndexEntry is one row of the index file, mapping a live capture to its
// archived counterpart.
type IndexEntry struct {
	Position           int    `json:"position"`
	LiveURL            string `json:"live_url"`
	ArchivedURL        string `json:"archived_url"`
	LiveCaptureRef     string `json:"live_capture_ref"`
	ArchivedCaptureRef string `json:"archived_capture_ref"`
}

// Verdict is the classification of one archived request.
type Verdict string

const (
	VerdictAgree    Verdict = "agree"
	VerdictDisagree Verdict = "disagree"
	VerdictMissing  Verdict = "missing"
)

// MatchResult is the outcome of matching one archived record against the
// live collection.
type MatchResult struct {
	Archived RequestRecord  `json:"archived"`
	Live     *RequestRecord `json:"live"` // nil when no candidate cleared the threshold
	Score    int            `json:"score"`
	Verdict  Verdict        `json:"verdict"`
}

// PairReport is the aggregate result of comparing one IndexEntry's captures.
type PairReport struct {
	TotalArchived       int           `json:"total_archived"`
	FilteredOut         int           `json:"filtered_out"`
	DisagreementCount   int           `json:"disagreement_count"`
	MissingCount        int           `json:"missing_count"`
	CorrespondenceScore float64       `json:"correspondence_score"`
	Matches             []MatchResult `json:"matches,omitempty"`
	Notices             []Notice      `json:"notices,omitempty"`
}

// Matched returns how many archived records found a live counterpart.
func (r PairReport) Matched() int {
	return r.TotalArchived - r.MissingCount
}

// NoticeKind identifies the event a Notice describes.
type NoticeKind string

const (
	NoticeNoiseRemoved    NoticeKind = "noise_removed"
	NoticeMissingMatch    NoticeKind = "missing_match"
	NoticeDisagreement    NoticeKind = "disagreement"
	NoticeZeroRequests    NoticeKind = "zero_requests"
	NoticeMalformedRecord NoticeKind = "malformed_record"
	NoticePairSummary     NoticeKind = "pair_summary"
	NoticeEntryFailed     NoticeKind = "entry_failed"
)

// Notice is a structured event produced while loading, filtering, matching
// or classifying. Rendering is left to the caller.
type Notice struct {
	Kind           NoticeKind `json:"kind"`
	Level          slog.Level `json:"level"`
	Message        string     `json:"message"`
	URL            string     `json:"url,omitempty"`
	LiveURL        string     `json:"live_url,omitempty"`
	ArchivedURL    string     `json:"archived_url,omitempty"`
	LiveStatus     string     `json:"live_status,omitempty"`
	ArchivedStatus string     `json:"archived_status,omitempty"`
	Detail         string     `json:"detail,omitempty"`
}

// EntryOutcome pairs an IndexEntry with either its report or the reason the
// comparison could not be made. Exactly one of Report and Err is set.
type EntryOutcome struct {
	Entry   IndexEntry  `json:"entry"`
	Report  *PairReport `json:"report,omitempty"`
	Err     error       `json:"-"`
	Error   string      `json:"error,omitempty"`
	Notices []Notice    `json:"load_notices,omitempty"` // Produced by the capture loaders
}

// Failed reports whether the entry could not be compared.
func (o EntryOutcome) Failed() bool { return o.Err != nil || o.Error != "" }

// Run is one persisted batch invocation.
type Run struct {
	ID         string     `json:"id"`
	IndexPath  string     `json:"index_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"` // nil while the run is in progress
	Entries    int        `json:"entries"`
	Failed     int        `json:"failed"`
}
