package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_DomainReleases(t *testing.T) {
	t.Run("converted in order", func(t *testing.T) {
		m := &Manifest{
			DownloadURLPrefix: "https://example.com/downloads",
			Releases: []Release{
				{
					Version: "200", ShortVersion: "2.0", PubDate: "d2", MinimumSystemVersion: "10.13",
					ReleaseNotesHTML: "<p>two</p>", ReleaseNotesURL: "https://example.com/notes/2.0.html",
					LocalizedReleaseNotes: map[string]string{"pt_BR": "https://example.com/pt/2.0.html"},
					ArchivePath:           "/build/My App-2.0.zip", FileSize: 20, MimeType: "application/zip",
					EdSignature: "ed", DSASignature: "dsa",
					Deltas: []Delta{{FromVersion: "100", ArchivePath: "/build/d.delta", FileSize: 3, EdSignature: "ded"}},
				},
				{Version: "100", ShortVersion: "1.0", ArchiveURL: "https://cdn.example.com/MyApp-1.0.zip", MimeType: "application/zip"},
			},
		}

		releases, err := m.DomainReleases()
		require.NoError(t, err)
		require.Len(t, releases, 2)

		r := releases[0]
		assert.Equal(t, "200", r.Version)
		assert.Equal(t, "2.0", r.ShortVersion)
		assert.Equal(t, "d2", r.PubDate)
		assert.Equal(t, "10.13", r.MinimumSystemVersion)
		assert.Equal(t, "<p>two</p>", r.ReleaseNotesHTML)
		assert.Equal(t, "https://example.com/notes/2.0.html", r.ReleaseNotesURL)
		assert.Equal(t, map[string]string{"pt-BR": "https://example.com/pt/2.0.html"}, r.LocalizedReleaseNotes)
		assert.Equal(t, "https://example.com/downloads/My%20App-2.0.zip", r.ArchiveURL)
		assert.Equal(t, "My App-2.0", r.BaseName())
		assert.Equal(t, int64(20), r.FileSize)
		assert.Equal(t, "ed", r.EdSignature)
		assert.Equal(t, "dsa", r.DSASignature)
		require.Len(t, r.Deltas, 1)
		assert.Equal(t, "100", r.Deltas[0].FromVersion)
		assert.Equal(t, "d.delta", r.Deltas[0].FileName())
		assert.Equal(t, "ded", r.Deltas[0].EdSignature)

		// explicit archive url wins over the prefix
		assert.Equal(t, "https://cdn.example.com/MyApp-1.0.zip", releases[1].ArchiveURL)
		assert.Nil(t, releases[1].LocalizedReleaseNotes)
	})

	t.Run("sorted newest first", func(t *testing.T) {
		m := &Manifest{Sort: true, Releases: []Release{
			{Version: "a", ShortVersion: "1.2.0"},
			{Version: "b", ShortVersion: "1.10.0"},
			{Version: "c", ShortVersion: "1.9"},
			{Version: "d", ShortVersion: "2.0.0-beta.1"},
		}}
		releases, err := m.DomainReleases()
		require.NoError(t, err)
		var got []string
		for _, r := range releases {
			got = append(got, r.Version)
		}
		assert.Equal(t, []string{"d", "b", "c", "a"}, got)
	})

	t.Run("sort with non-semantic version", func(t *testing.T) {
		m := &Manifest{Sort: true, Releases: []Release{{Version: "a", ShortVersion: "build 12"}}}
		_, err := m.DomainReleases()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not semantic")
	})

	t.Run("release notes from file, sanitized", func(t *testing.T) {
		notes := writeFile(t, t.TempDir(), "notes.html", `<p onclick="evil()">fixed <b>bugs</b></p><script>alert(1)</script>`)
		m := &Manifest{SanitizeNotes: true, Releases: []Release{{Version: "1", ShortVersion: "1.0", ReleaseNotesFile: notes}}}
		releases, err := m.DomainReleases()
		require.NoError(t, err)
		assert.Equal(t, `<p>fixed <b>bugs</b></p>`, releases[0].ReleaseNotesHTML)
	})

	t.Run("release notes kept as is without sanitizing", func(t *testing.T) {
		m := &Manifest{Releases: []Release{{Version: "1", ShortVersion: "1.0", ReleaseNotesHTML: `<script>x()</script>`}}}
		releases, err := m.DomainReleases()
		require.NoError(t, err)
		assert.Equal(t, `<script>x()</script>`, releases[0].ReleaseNotesHTML)
	})

	t.Run("missing release notes file", func(t *testing.T) {
		m := &Manifest{Releases: []Release{{Version: "1", ShortVersion: "1.0", ReleaseNotesFile: filepath.Join(t.TempDir(), "none.html")}}}
		_, err := m.DomainReleases()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read release notes")
	})

	t.Run("bad language tag", func(t *testing.T) {
		m := &Manifest{Releases: []Release{{Version: "1", ShortVersion: "1.0",
			LocalizedReleaseNotes: map[string]string{"not a language!": "https://example.com"}}}}
		_, err := m.DomainReleases()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad language tag")
	})

	t.Run("duplicate language after normalization", func(t *testing.T) {
		m := &Manifest{Releases: []Release{{Version: "1", ShortVersion: "1.0",
			LocalizedReleaseNotes: map[string]string{"pt-BR": "https://example.com/a", "pt_BR": "https://example.com/b"}}}}
		_, err := m.DomainReleases()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate language tag")
	})

	t.Run("no archive url left empty", func(t *testing.T) {
		m := &Manifest{Releases: []Release{{Version: "1", ShortVersion: "1.0", ArchivePath: "/build/a.zip"}}}
		releases, err := m.DomainReleases()
		require.NoError(t, err)
		assert.Empty(t, releases[0].ArchiveURL)
	})
}
