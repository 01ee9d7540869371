package domain

import (
	"path/filepath"
	"strings"
)

// Release describes one shipped version to be merged into an appcast.
// Empty optional strings mean "not set".
type Release struct {
	Version               string            // build version, unique key of the feed item
	ShortVersion          string            // human-facing version label
	PubDate               string            // preformatted publication date
	MinimumSystemVersion  string            // minimum OS version required
	ReleaseNotesHTML      string            // inline release notes, embedded as CDATA
	ReleaseNotesURL       string            // default-language release notes link
	LocalizedReleaseNotes map[string]string // language tag -> release notes URL
	ArchivePath           string            // local path of the primary artifact
	ArchiveURL            string            // absolute download URL of the primary artifact
	FileSize              int64
	MimeType              string
	EdSignature           string
	DSASignature          string
	Deltas                []Delta
}

// Delta describes an incremental update from an older version to the owning release
type Delta struct {
	FromVersion  string
	ArchivePath  string // only the file name is used, resolved against Release.ArchiveURL
	FileSize     int64
	EdSignature  string
	DSASignature string
}

// BaseName returns the artifact file name without directory and extension,
// e.g. "/build/MyApp-1.2.zip" -> "MyApp-1.2"
func (r Release) BaseName() string {
	name := filepath.Base(r.ArchivePath)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FileName returns the delta artifact file name
func (d Delta) FileName() string {
	return filepath.Base(d.ArchivePath)
}
