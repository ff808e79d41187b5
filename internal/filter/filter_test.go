package filter

import (
	"testing"

	"github.com/sunovault/sunovault/internal/domain"
)

type fakeIndex map[string]bool

func (f fakeIndex) Contains(id string) bool { return f[id] }

func playable(id string) *domain.Record {
	return &domain.Record{
		ID:       id,
		Title:    "Song " + id,
		AudioURL: "http://cdn.example/" + id + ".mp3",
	}
}

func TestAdmitBasics(t *testing.T) {
	rec := playable("a1")
	cfg := Config{HideStems: true, HideDisliked: true}

	if !Admit(rec, cfg, false, fakeIndex{}) {
		t.Error("Expected plain playable record to be admitted")
	}

	// No stream URL rejects unless scan-only.
	noStream := &domain.Record{ID: "b2", Title: "No Stream"}
	if Admit(noStream, cfg, false, fakeIndex{}) {
		t.Error("Expected record without stream to be rejected")
	}
	if !Admit(noStream, cfg, true, fakeIndex{}) {
		t.Error("Expected record without stream to be admitted in scan-only mode")
	}
}

func TestAdmitIsDeterministic(t *testing.T) {
	rec := playable("a1")
	rec.Metadata.Tags = "rock"
	cfg := Config{SearchText: "rock", HideStems: true}
	idx := fakeIndex{}

	first := Admit(rec, cfg, false, idx)
	for i := 0; i < 10; i++ {
		if Admit(rec, cfg, false, idx) != first {
			t.Fatal("Admit is not deterministic for identical inputs")
		}
	}
}

func TestAdmitTrash(t *testing.T) {
	rec := playable("t1")
	rec.IsTrashed = true

	if Admit(rec, Config{}, false, nil) {
		t.Error("Expected trashed record to be rejected by default")
	}
	if !Admit(rec, Config{IncludeTrashed: true}, false, nil) {
		t.Error("Expected trashed record to be admitted when trash is included")
	}
}

func TestAdmitStems(t *testing.T) {
	stem := playable("s1")
	stem.Title = "Midnight Run (drums)"

	if Admit(stem, Config{HideStems: true}, false, nil) {
		t.Error("Expected stem to be hidden")
	}
	if !Admit(stem, Config{HideStems: false}, false, nil) {
		t.Error("Expected stem to pass when stems are not hidden")
	}

	// Stems-only requires stem-ness and overrides hide-stems.
	if !Admit(stem, Config{HideStems: true, StemsOnly: true}, false, nil) {
		t.Error("Expected stems-only to admit a stem even with hide-stems set")
	}
	full := playable("f1")
	if Admit(full, Config{StemsOnly: true}, false, nil) {
		t.Error("Expected stems-only to reject a full mix")
	}
}

func TestAdmitLikedSignals(t *testing.T) {
	cfg := Config{LikedOnly: true}

	plain := playable("p1")
	if Admit(plain, cfg, false, nil) {
		t.Error("Expected unliked record to be rejected")
	}

	// The three liked signals are OR'd.
	byFlag := playable("p2")
	byFlag.IsLiked = true
	byReaction := playable("p3")
	byReaction.Reaction = "L"
	byVote := playable("p4")
	byVote.Vote = "up"

	for _, rec := range []*domain.Record{byFlag, byReaction, byVote} {
		if !Admit(rec, cfg, false, nil) {
			t.Errorf("Expected record %s to count as liked", rec.ID)
		}
	}
}

func TestAdmitDisliked(t *testing.T) {
	rec := playable("d1")
	rec.Vote = "down"

	if Admit(rec, Config{HideDisliked: true}, false, nil) {
		t.Error("Expected disliked record to be hidden")
	}
	if !Admit(rec, Config{}, false, nil) {
		t.Error("Expected disliked record to pass without the filter")
	}
}

func TestAdmitPublicOnly(t *testing.T) {
	rec := playable("v1")
	if Admit(rec, Config{PublicOnly: true}, false, nil) {
		t.Error("Expected private record to be rejected")
	}
	rec.IsPublic = true
	if !Admit(rec, Config{PublicOnly: true}, false, nil) {
		t.Error("Expected public record to be admitted")
	}
}

func TestAdmitStudioClips(t *testing.T) {
	rec := playable("c1")
	rec.Metadata.Type = "studio_clip"
	if Admit(rec, Config{HideStudioClips: true}, false, nil) {
		t.Error("Expected studio clip to be hidden")
	}
}

func TestAdmitSourceType(t *testing.T) {
	gen := playable("g1")
	upload := playable("u1")
	upload.Metadata.Type = "upload"

	if Admit(gen, Config{SourceType: "uploads"}, false, nil) {
		t.Error("Expected non-upload to be rejected by uploads filter")
	}
	if !Admit(upload, Config{SourceType: "uploads"}, false, nil) {
		t.Error("Expected upload to pass uploads filter")
	}
	if !Admit(gen, Config{SourceType: "all"}, false, nil) {
		t.Error("Expected all filter to admit everything")
	}
}

func TestAdmitSearchText(t *testing.T) {
	rec := playable("q1")
	rec.Title = "Neon City"
	rec.Metadata.Tags = "synthwave, retro"
	rec.Metadata.Prompt = "A song about rainy streets"

	cases := []struct {
		query string
		want  bool
	}{
		{"neon", true},
		{"RETRO", true},
		{"rainy streets", true},
		{"polka", false},
	}
	for _, tt := range cases {
		if got := Admit(rec, Config{SearchText: tt.query}, false, nil); got != tt.want {
			t.Errorf("query %q: Admit = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestAdmitDedupAlwaysEnforced(t *testing.T) {
	idx := fakeIndex{"a1": true}
	rec := playable("a1")
	rec.IsLiked = true
	rec.IsPublic = true

	configs := []Config{
		{},
		{LikedOnly: true},
		{PublicOnly: true},
		{HideStems: true, HideDisliked: true},
	}
	for i, cfg := range configs {
		if Admit(rec, cfg, false, idx) {
			t.Errorf("config %d: Expected duplicate to be rejected", i)
		}
	}
}

func TestIsStem(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
		want bool
	}{
		{"title marker", domain.Record{Title: "Song (drums)"}, true},
		{"marker is case-insensitive", domain.Record{Title: "Song (DRUMS)"}, true},
		{"metadata type gen_stem", domain.Record{Metadata: domain.Metadata{Type: "gen_stem"}}, true},
		{"metadata type stem", domain.Record{Metadata: domain.Metadata{Type: "stem"}}, true},
		{"top-level type substring", domain.Record{ClipType: "v4_stem"}, true},
		{"plain record", domain.Record{Title: "Just A Song"}, false},
		{"parenthetical non-marker", domain.Record{Title: "Song (live)"}, false},
	}

	for _, tt := range tests {
		if got := IsStem(&tt.rec); got != tt.want {
			t.Errorf("%s: IsStem = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBaseTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Midnight Run (drums)", "Midnight Run"},
		{"Midnight Run (Backing Vocals)", "Midnight Run"},
		{"Midnight Run", "Midnight Run"},
	}
	for _, tt := range tests {
		if got := BaseTitle(tt.input); got != tt.expected {
			t.Errorf("BaseTitle(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
