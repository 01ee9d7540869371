package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// defaultMimeType is used for archives without an explicit mime_type
const defaultMimeType = "application/octet-stream"

// Manifest holds a batch of releases to merge into an appcast
type Manifest struct {
	Feed              string    `yaml:"feed" toml:"feed" json:"feed,omitempty" jsonschema:"description=Appcast file to update, relative to the manifest"`
	DownloadURLPrefix string    `yaml:"download_url_prefix" toml:"download_url_prefix" json:"download_url_prefix,omitempty" jsonschema:"description=URL prefix for archives without archive_url"`
	Sort              bool      `yaml:"sort" toml:"sort" json:"sort,omitempty" jsonschema:"default=false,description=Order releases newest first by short_version (semver)"`
	SanitizeNotes     bool      `yaml:"sanitize_notes" toml:"sanitize_notes" json:"sanitize_notes,omitempty" jsonschema:"default=false,description=Sanitize release notes HTML before embedding"`
	Releases          []Release `yaml:"releases" toml:"releases" json:"releases" jsonschema:"required,minItems=1,description=Releases in merge order"`

	baseDir string // directory of the manifest file, base for relative paths
}

// Release describes a single release in the manifest
type Release struct {
	Version               string            `yaml:"version" toml:"version" json:"version" jsonschema:"required,minLength=1,description=Build version, unique key of the feed item"`
	ShortVersion          string            `yaml:"short_version" toml:"short_version" json:"short_version" jsonschema:"required,minLength=1,description=Human-facing version"`
	PubDate               string            `yaml:"pub_date" toml:"pub_date" json:"pub_date,omitempty" jsonschema:"description=Publication date in RFC1123Z, defaults to archive mtime"`
	MinimumSystemVersion  string            `yaml:"minimum_system_version" toml:"minimum_system_version" json:"minimum_system_version,omitempty" jsonschema:"description=Minimum OS version"`
	ReleaseNotesHTML      string            `yaml:"release_notes_html" toml:"release_notes_html" json:"release_notes_html,omitempty" jsonschema:"description=Inline release notes HTML"`
	ReleaseNotesFile      string            `yaml:"release_notes_file" toml:"release_notes_file" json:"release_notes_file,omitempty" jsonschema:"description=File with release notes HTML"`
	ReleaseNotesURL       string            `yaml:"release_notes_url" toml:"release_notes_url" json:"release_notes_url,omitempty" jsonschema:"description=Default release notes link"`
	LocalizedReleaseNotes map[string]string `yaml:"localized_release_notes" toml:"localized_release_notes" json:"localized_release_notes,omitempty" jsonschema:"description=Release notes links by language tag"`
	ArchivePath           string            `yaml:"archive_path" toml:"archive_path" json:"archive_path,omitempty" jsonschema:"description=Local path of the archive"`
	ArchiveURL            string            `yaml:"archive_url" toml:"archive_url" json:"archive_url,omitempty" jsonschema:"description=Absolute download URL of the archive"`
	FileSize              int64             `yaml:"file_size" toml:"file_size" json:"file_size" jsonschema:"minimum=0,description=Archive size in bytes, defaults to the archive file size"`
	MimeType              string            `yaml:"mime_type" toml:"mime_type" json:"mime_type" jsonschema:"default=application/octet-stream,description=Archive mime type"`
	EdSignature           string            `yaml:"ed_signature" toml:"ed_signature" json:"ed_signature,omitempty" jsonschema:"description=EdDSA signature of the archive"`
	DSASignature          string            `yaml:"dsa_signature" toml:"dsa_signature" json:"dsa_signature,omitempty" jsonschema:"description=DSA signature of the archive"`
	Deltas                []Delta           `yaml:"deltas" toml:"deltas" json:"deltas,omitempty" jsonschema:"description=Delta updates to this release"`
}

// Delta describes a delta update in the manifest
type Delta struct {
	FromVersion  string `yaml:"from_version" toml:"from_version" json:"from_version" jsonschema:"required,minLength=1,description=Version the delta applies to"`
	ArchivePath  string `yaml:"archive_path" toml:"archive_path" json:"archive_path" jsonschema:"required,minLength=1,description=Local path of the delta file"`
	FileSize     int64  `yaml:"file_size" toml:"file_size" json:"file_size" jsonschema:"minimum=0,description=Delta size in bytes, defaults to the file size"`
	EdSignature  string `yaml:"ed_signature" toml:"ed_signature" json:"ed_signature,omitempty" jsonschema:"description=EdDSA signature of the delta"`
	DSASignature string `yaml:"dsa_signature" toml:"dsa_signature" json:"dsa_signature,omitempty" jsonschema:"description=DSA signature of the delta"`
}

// Load reads a manifest from a YAML or TOML file, picked by extension
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
	}
	m.baseDir = filepath.Dir(path)

	m.setDefaults()

	// validate manifest
	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&m); err != nil {
		return nil, fmt.Errorf("verify manifest: %w", err)
	}

	return &m, nil
}

// setDefaults resolves relative paths and fills values derived from the archive files
func (m *Manifest) setDefaults() {
	if m.Feed != "" {
		m.Feed = m.resolve(m.Feed)
	}
	for i := range m.Releases {
		r := &m.Releases[i]
		if r.ArchivePath != "" {
			r.ArchivePath = m.resolve(r.ArchivePath)
		}
		if r.ReleaseNotesFile != "" {
			r.ReleaseNotesFile = m.resolve(r.ReleaseNotesFile)
		}
		if r.MimeType == "" {
			r.MimeType = defaultMimeType
		}

		info, statErr := os.Stat(r.ArchivePath)
		if r.FileSize == 0 && statErr == nil {
			r.FileSize = info.Size()
		}
		if r.PubDate == "" {
			pubTime := time.Now()
			if statErr == nil {
				pubTime = info.ModTime()
			}
			r.PubDate = pubTime.Format(time.RFC1123Z)
		}

		for j := range r.Deltas {
			d := &r.Deltas[j]
			d.ArchivePath = m.resolve(d.ArchivePath)
			if d.FileSize == 0 {
				if di, err := os.Stat(d.ArchivePath); err == nil {
					d.FileSize = di.Size()
				}
			}
		}
	}
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// validate checks manifest for correctness
func validate(m *Manifest) error {
	if len(m.Releases) == 0 {
		return fmt.Errorf("at least one release is required")
	}
	for i, r := range m.Releases {
		if r.Version == "" {
			return fmt.Errorf("releases[%d].version is required", i)
		}
		if r.ShortVersion == "" {
			return fmt.Errorf("releases[%d].short_version is required", i)
		}
		if r.FileSize < 0 {
			return fmt.Errorf("releases[%d].file_size must be non-negative", i)
		}
		if r.ReleaseNotesHTML != "" && r.ReleaseNotesFile != "" {
			return fmt.Errorf("releases[%d]: release_notes_html and release_notes_file are mutually exclusive", i)
		}
		for j, d := range r.Deltas {
			if d.FromVersion == "" {
				return fmt.Errorf("releases[%d].deltas[%d].from_version is required", i, j)
			}
			if d.ArchivePath == "" {
				return fmt.Errorf("releases[%d].deltas[%d].archive_path is required", i, j)
			}
			if d.FileSize < 0 {
				return fmt.Errorf("releases[%d].deltas[%d].file_size must be non-negative", i, j)
			}
		}
	}
	return nil
}

// GetFeed returns the destination appcast path
func (m *Manifest) GetFeed() string {
	return m.Feed
}
