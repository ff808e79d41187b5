// Package filter decides which catalog records are relevant to a run. Admit
// is pure: it does no I/O and never mutates its inputs, so every gate is
// independently testable.
package filter

import (
	"regexp"
	"strings"

	"github.com/sunovault/sunovault/internal/constants"
	"github.com/sunovault/sunovault/internal/domain"
)

// Config is the read-only filter configuration for one run.
type Config struct {
	LikedOnly       bool
	HideDisliked    bool
	HideStems       bool
	StemsOnly       bool
	HideStudioClips bool
	PublicOnly      bool
	IncludeTrashed  bool
	SourceType      string // "all" or "uploads"
	SearchText      string
	CollectionID    string
	CollectionKind  string // domain.CollectionProject or domain.CollectionPlaylist
}

// stemMarkers are the parenthetical instrument/part markers the platform
// appends to stem titles.
var stemMarkers = []string{
	"(bass)", "(drums)", "(backing vocal)", "(backing vocals)", "(vocals)",
	"(instrumental)", "(woodwinds)", "(brass)", "(fx)", "(synth)",
	"(strings)", "(percussion)", "(keyboard)", "(guitar)",
}

// DuplicateChecker is the read side of the duplicate index.
type DuplicateChecker interface {
	Contains(id string) bool
}

// Admit evaluates the filter gates in order and short-circuits on the first
// rejection. scanOnly relaxes the playable-stream requirement because a scan
// never downloads.
func Admit(rec *domain.Record, cfg Config, scanOnly bool, dup DuplicateChecker) bool {
	// Hide-stems is disabled while stems-only is active; stems-only inverts
	// the check instead.
	hideStems := cfg.HideStems && !cfg.StemsOnly

	if rec.AudioURL == "" && !scanOnly {
		return false
	}
	if rec.IsTrashed && !cfg.IncludeTrashed {
		return false
	}
	if hideStems && IsStem(rec) {
		return false
	}
	if cfg.StemsOnly && !IsStem(rec) {
		return false
	}
	if cfg.LikedOnly && !rec.Liked() {
		return false
	}
	if cfg.HideDisliked && rec.Disliked() {
		return false
	}
	if cfg.PublicOnly && !rec.IsPublic {
		return false
	}
	if cfg.HideStudioClips && rec.Metadata.Type == constants.ClipTypeStudioClip {
		return false
	}
	if cfg.SourceType != "" && cfg.SourceType != constants.SourceTypeAll {
		if cfg.SourceType == constants.SourceTypeUploads && rec.Metadata.Type != constants.ClipTypeUpload {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(cfg.SearchText)); q != "" {
		if !strings.Contains(rec.SearchText(), q) {
			return false
		}
	}
	// Dedup is the last gate but is always enforced.
	if dup != nil && dup.Contains(rec.ID) {
		return false
	}
	return true
}

// IsStem reports whether the record is an isolated instrument/vocal track,
// detected by a type field, a type substring, or a title marker.
func IsStem(rec *domain.Record) bool {
	switch rec.Metadata.Type {
	case constants.ClipTypeGenStem, constants.ClipTypeStem:
		return true
	}
	if strings.Contains(rec.ClipType, "stem") {
		return true
	}

	title := strings.ToLower(rec.Title)
	for _, marker := range stemMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// BaseTitle strips stem markers from a title, yielding the parent song name
// used for the stem subfolder.
func BaseTitle(title string) string {
	clean := title
	for _, marker := range stemMarkers {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(marker))
		clean = re.ReplaceAllString(clean, "")
	}
	return strings.TrimSpace(clean)
}
