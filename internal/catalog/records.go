package catalog

import (
	"github.com/sunovault/sunovault/internal/domain"
)

// containerKeys are the known record-list container keys, tried in order.
// Which one the API uses depends on the source kind.
var containerKeys = []string{
	"clips", "project_clips", "playlist_clips", "items", "songs", "tracks",
}

// UnwrapRecords extracts the record list from a decoded page body. The
// upstream API nests the list under different keys per source kind, wraps
// some entries in a {"clip": {...}} envelope, and sometimes returns a bare
// array. Unknown shapes yield zero records, never an error.
func UnwrapRecords(data any) []domain.Record {
	items := findRecordList(data)

	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if clip, ok := obj["clip"].(map[string]any); ok {
			obj = clip
		}
		if len(obj) == 0 {
			continue
		}
		records = append(records, DecodeRecord(obj))
	}
	return records
}

func findRecordList(data any) []any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range containerKeys {
			if list, ok := v[key].([]any); ok && len(list) > 0 {
				return list
			}
		}
		// Playlist responses nest their container one level down.
		if nested, ok := v["playlist"].(map[string]any); ok {
			return findRecordList(nested)
		}
	}
	return nil
}

// DecodeRecord maps one raw clip object onto a Record, keeping the raw
// object around for defensive traversals.
func DecodeRecord(obj map[string]any) domain.Record {
	rec := domain.Record{
		ID:          str(obj, "id"),
		Title:       str(obj, "title"),
		DisplayName: str(obj, "display_name"),
		ClipType:    str(obj, "type"),
		CreatedAt:   str(obj, "created_at"),
		AudioURL:    str(obj, "audio_url"),
		ImageURL:    str(obj, "image_url"),
		VideoURL:    str(obj, "video_url"),
		IsTrashed:   boolean(obj, "is_trashed"),
		IsPublic:    boolean(obj, "is_public"),
		IsLiked:     boolean(obj, "is_liked"),
		Vote:        str(obj, "vote"),
		Raw:         obj,
	}

	if reaction, ok := obj["reaction"].(map[string]any); ok {
		rec.Reaction = str(reaction, "reaction_type")
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		rec.Metadata = decodeMetadata(meta)
	}
	return rec
}

func decodeMetadata(meta map[string]any) domain.Metadata {
	return domain.Metadata{
		Type:   str(meta, "type"),
		Tags:   str(meta, "tags"),
		Prompt: str(meta, "prompt"),
		Lyrics: str(meta, "lyrics"),
		Text:   str(meta, "text"),
		Vote:   str(meta, "vote"),
	}
}

func str(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func boolean(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}
