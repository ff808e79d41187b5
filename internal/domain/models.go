// Package domain holds the shared model types of the ingestion pipeline.
package domain

import (
	"strings"
	"time"
)

// Record is one catalog entry as returned by the upstream API. It is
// immutable once decoded, except that Metadata may be replaced wholesale
// with a richer blob refetched from the per-clip detail endpoint.
type Record struct {
	ID          string
	Title       string
	DisplayName string
	ClipType    string // top-level "type" field
	CreatedAt   string // RFC3339-ish timestamp string from the API
	AudioURL    string
	ImageURL    string
	VideoURL    string
	IsTrashed   bool
	IsPublic    bool
	IsLiked     bool
	Reaction    string // reaction.reaction_type, "L" or "D"
	Vote        string // "up" or "down"
	Metadata    Metadata

	// Raw keeps the decoded JSON object so defensive traversals (the WAV
	// URL hunt) can see fields we never modelled.
	Raw map[string]any
}

// Metadata is the structured metadata blob nested inside a record.
type Metadata struct {
	Type   string
	Tags   string
	Prompt string
	Lyrics string
	Text   string
	Vote   string
}

// Lyrics returns the best available lyric text: the explicit lyrics field,
// then the text field, then the generation prompt.
func (r *Record) Lyrics() string {
	if r.Metadata.Lyrics != "" {
		return r.Metadata.Lyrics
	}
	if r.Metadata.Text != "" {
		return r.Metadata.Text
	}
	return r.Metadata.Prompt
}

// Year extracts the creation year from the timestamp, or "" when unknown.
func (r *Record) Year() string {
	if len(r.CreatedAt) >= 4 {
		return r.CreatedAt[:4]
	}
	return ""
}

// Month extracts the YYYY-MM prefix from the timestamp, or "" when unknown.
func (r *Record) Month() string {
	if len(r.CreatedAt) >= 7 {
		return r.CreatedAt[:7]
	}
	return ""
}

// Liked reports whether any of the three inconsistent upstream "liked"
// signals is set.
func (r *Record) Liked() bool {
	return r.IsLiked || r.Reaction == "L" || r.Vote == "up" || r.Metadata.Vote == "up"
}

// Disliked reports whether the record carries a downvote marker.
func (r *Record) Disliked() bool {
	return r.Vote == "down" || r.Metadata.Vote == "down" || r.Reaction == "D"
}

// SearchText returns the lower-cased concatenation of the fields the
// free-text filter matches against.
func (r *Record) SearchText() string {
	return strings.ToLower(r.Title + " " + r.Metadata.Tags + " " + r.Metadata.Prompt)
}

// OutcomeStatus is the terminal state of one asset within a run.
type OutcomeStatus string

const (
	OutcomeDownloaded OutcomeStatus = "downloaded"
	OutcomeDuplicate  OutcomeStatus = "duplicate"
	OutcomeFiltered   OutcomeStatus = "filtered"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeCancelled  OutcomeStatus = "cancelled"
)

// Outcome is the per-asset result of a fetch.
type Outcome struct {
	AssetID     string        `db:"asset_id" json:"asset_id"`
	Title       string        `db:"title" json:"title"`
	Status      OutcomeStatus `db:"status" json:"status"`
	FilePath    string        `db:"file_path" json:"file_path,omitempty"`
	Error       string        `db:"error" json:"error,omitempty"`
	CompletedAt time.Time     `db:"completed_at" json:"completed_at"`
}

// RunStatus is the terminal state of a whole run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusStopped  RunStatus = "stopped"
	RunStatusError    RunStatus = "error"
)

// Run is one ingestion run, persisted for history.
type Run struct {
	ID         string     `db:"id" json:"id"`
	Source     string     `db:"source" json:"source"`
	Status     RunStatus  `db:"status" json:"status"`
	Error      string     `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Collection is a named grouping of records on the platform, either a
// project (workspace) or a playlist.
type Collection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"` // "project" or "playlist"
	Count int    `json:"count,omitempty"`
}

// Collection kinds
const (
	CollectionProject  = "project"
	CollectionPlaylist = "playlist"
)
