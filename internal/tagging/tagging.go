// Package tagging reads and writes audio container metadata. The embedded
// SUNO_UUID field doubles as the dedup marker the scanner looks for on the
// next run.
package tagging

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"

	"github.com/sunovault/sunovault/internal/constants"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Metadata is everything Embed writes into a file's tag container.
type Metadata struct {
	Title    string
	Artist   string
	Genre    string
	Year     string
	Comment  string
	Lyrics   string
	AssetID  string
	CoverArt []byte // raw image bytes, MIME sniffed
}

// Embed writes the metadata into the audio file at path. The container is
// chosen by extension: MP3 and WAV carry an ID3v2 tag (the same marker
// chunk the duplicate scanner reads back from WAV files), FLAC gets vorbis
// comments and a picture block.
func Embed(path string, meta Metadata) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtMP3, constants.ExtWAV:
		return embedID3(path, meta)
	case ".flac":
		return embedFLAC(path, meta)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadMarker extracts the SUNO_UUID marker from the file's tag container.
// Returns "" when the file has no marker; errors mean the container could
// not be read at all.
func ReadMarker(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtMP3, constants.ExtWAV:
		return readMarkerID3(path)
	case ".flac":
		return readMarkerFLAC(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func embedID3(path string, meta Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open tag container: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)

	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		tag.SetArtist(meta.Artist)
	}
	if meta.Genre != "" {
		tag.SetGenre(meta.Genre)
	}
	if meta.Year != "" {
		tag.SetYear(meta.Year)
	}
	if meta.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "Description",
			Text:        meta.Comment,
		})
	}
	if meta.Lyrics != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "",
			Lyrics:            meta.Lyrics,
		})
	}
	if meta.AssetID != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: constants.MarkerField,
			Value:       meta.AssetID,
		})
	}
	if len(meta.CoverArt) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    sniffImageMIME(meta.CoverArt),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     meta.CoverArt,
		})
	}

	return tag.Save()
}

func readMarkerID3(path string) (string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", fmt.Errorf("failed to open tag container: %w", err)
	}
	defer tag.Close()

	for _, framer := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		udt, ok := framer.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if udt.Description == constants.MarkerField {
			return udt.Value, nil
		}
	}
	return "", nil
}

func readMarkerFLAC(path string) (string, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse flac: %w", err)
	}

	cmt, _, err := findVorbisComment(f)
	if err != nil {
		return "", err
	}
	if cmt == nil {
		return "", nil
	}

	values, err := cmt.Get(constants.MarkerField)
	if err != nil || len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}
