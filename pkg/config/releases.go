package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"github.com/umputun/appcast/pkg/appcast"
	"github.com/umputun/appcast/pkg/domain"
)

// DomainReleases converts manifest releases to merge input, in merge order
func (m *Manifest) DomainReleases() ([]domain.Release, error) {
	var policy *bluemonday.Policy
	if m.SanitizeNotes {
		policy = bluemonday.UGCPolicy()
	}

	releases := make([]domain.Release, 0, len(m.Releases))
	for _, r := range m.Releases {
		notes, err := r.releaseNotes(policy)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w", r.Version, err)
		}
		localized, err := canonicalLanguages(r.LocalizedReleaseNotes)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w", r.Version, err)
		}
		archiveURL, err := m.archiveURL(r)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w", r.Version, err)
		}

		dr := domain.Release{
			Version:               r.Version,
			ShortVersion:          r.ShortVersion,
			PubDate:               r.PubDate,
			MinimumSystemVersion:  r.MinimumSystemVersion,
			ReleaseNotesHTML:      notes,
			ReleaseNotesURL:       r.ReleaseNotesURL,
			LocalizedReleaseNotes: localized,
			ArchivePath:           r.ArchivePath,
			ArchiveURL:            archiveURL,
			FileSize:              r.FileSize,
			MimeType:              r.MimeType,
			EdSignature:           r.EdSignature,
			DSASignature:          r.DSASignature,
		}
		for _, d := range r.Deltas {
			dr.Deltas = append(dr.Deltas, domain.Delta{
				FromVersion:  d.FromVersion,
				ArchivePath:  d.ArchivePath,
				FileSize:     d.FileSize,
				EdSignature:  d.EdSignature,
				DSASignature: d.DSASignature,
			})
		}
		releases = append(releases, dr)
	}

	if m.Sort {
		if err := sortNewestFirst(releases); err != nil {
			return nil, err
		}
	}
	return releases, nil
}

// releaseNotes returns inline or file based notes, sanitized if policy is set
func (r Release) releaseNotes(policy *bluemonday.Policy) (string, error) {
	notes := r.ReleaseNotesHTML
	if r.ReleaseNotesFile != "" {
		data, err := os.ReadFile(r.ReleaseNotesFile) //nolint:gosec // path comes from the manifest
		if err != nil {
			return "", fmt.Errorf("read release notes: %w", err)
		}
		notes = string(data)
	}
	if policy != nil && notes != "" {
		notes = policy.Sanitize(notes)
	}
	return notes, nil
}

// archiveURL returns archive_url or builds it from download_url_prefix and the archive name.
// An empty result is left for the merge to reject.
func (m *Manifest) archiveURL(r Release) (string, error) {
	if r.ArchiveURL != "" || m.DownloadURLPrefix == "" || r.ArchivePath == "" {
		return r.ArchiveURL, nil
	}
	prefix, err := url.Parse(m.DownloadURLPrefix)
	if err != nil {
		return "", fmt.Errorf("parse download_url_prefix: %w", err)
	}
	if prefix.Path == "" || prefix.Path[len(prefix.Path)-1] != '/' {
		prefix.Path += "/"
		prefix.RawPath = ""
	}
	return appcast.ArtifactURL(prefix, filepath.Base(r.ArchivePath))
}

// canonicalLanguages validates language tags and rewrites them in BCP 47 form, e.g. pt_BR -> pt-BR
func canonicalLanguages(links map[string]string) (map[string]string, error) {
	if len(links) == 0 {
		return nil, nil
	}
	res := make(map[string]string, len(links))
	for lang, link := range links {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("bad language tag %q: %w", lang, err)
		}
		canonical := tag.String()
		if _, dup := res[canonical]; dup {
			return nil, fmt.Errorf("duplicate language tag %q", canonical)
		}
		if canonical != lang {
			log.Printf("[DEBUG] language tag %q normalized to %q", lang, canonical)
		}
		res[canonical] = link
	}
	return res, nil
}

// sortNewestFirst orders releases by semantic short version, highest first
func sortNewestFirst(releases []domain.Release) error {
	versions := make(map[string]*semver.Version, len(releases))
	for _, r := range releases {
		v, err := semver.NewVersion(r.ShortVersion)
		if err != nil {
			return fmt.Errorf("sort release %s: short version %q is not semantic: %w", r.Version, r.ShortVersion, err)
		}
		versions[r.Version] = v
	}
	sort.SliceStable(releases, func(i, j int) bool {
		return versions[releases[i].Version].GreaterThan(versions[releases[j].Version])
	})
	return nil
}
