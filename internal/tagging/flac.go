package tagging

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/sunovault/sunovault/internal/constants"
)

// findVorbisComment locates the vorbis comment block in a parsed FLAC file.
// Returns (nil, -1, nil) when the file has none.
func findVorbisComment(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int, error) {
	for i, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, -1, fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		return cmt, i, nil
	}
	return nil, -1, nil
}

func embedFLAC(path string, meta Metadata) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse flac: %w", err)
	}

	cmt, idx, err := findVorbisComment(f)
	if err != nil {
		return err
	}
	if cmt == nil {
		cmt = flacvorbis.New()
	}

	addTag := func(name, value string) {
		if value != "" {
			_ = cmt.Add(name, value)
		}
	}
	addTag("TITLE", meta.Title)
	addTag("ARTIST", meta.Artist)
	addTag("GENRE", meta.Genre)
	addTag("DATE", meta.Year)
	addTag("DESCRIPTION", meta.Comment)
	addTag("UNSYNCEDLYRICS", meta.Lyrics)
	addTag(constants.MarkerField, meta.AssetID)

	block := cmt.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}

	if len(meta.CoverArt) > 0 {
		pic, err := flacpicture.NewFromImageData(
			flacpicture.PictureTypeFrontCover, "Cover", meta.CoverArt, sniffImageMIME(meta.CoverArt))
		if err == nil {
			picBlock := pic.Marshal()
			f.Meta = append(f.Meta, &picBlock)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save flac: %w", err)
	}
	return nil
}

// sniffImageMIME detects the image MIME type from header bytes, trimming
// any charset parameters.
func sniffImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
