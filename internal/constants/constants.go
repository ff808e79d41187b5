// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort         = "8090"
	DefaultDBPath       = "sunovault.db"
	DefaultAPIBaseURL   = "https://studio-api.prod.suno.com"
	DefaultWorkers      = 3
	DefaultStartPage    = 1
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 2 * time.Second
	InterPageDelay      = 1 * time.Second
	PageHTTPTimeout     = 15 * time.Second
	DownloadHTTPTimeout = 60 * time.Second
	ImageHTTPTimeout    = 30 * time.Second
	ConvertPollInterval = 2 * time.Second
	ConvertPollTimeout  = 120 * time.Second
	DownloadChunkSize   = 8192
	MaxFilenameLength   = 200
)

// MarkerField is the custom tag field holding the platform identifier of a
// downloaded asset. The duplicate index is rebuilt from it on every run.
const MarkerField = "SUNO_UUID"

// Source types accepted by the type filter
const (
	SourceTypeAll     = "all"
	SourceTypeUploads = "uploads"
)

// Clip type markers from the upstream API
const (
	ClipTypeUpload     = "upload"
	ClipTypeStudioClip = "studio_clip"
	ClipTypeGenStem    = "gen_stem"
	ClipTypeStem       = "stem"
)

// File extensions
const (
	ExtMP3 = ".mp3"
	ExtWAV = ".wav"
	ExtMP4 = ".mp4"
	ExtM4A = ".m4a"
	ExtTXT = ".txt"
)

// File permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Characters stripped from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"
