package appcast

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/umputun/appcast/pkg/domain"
)

// deltaMimeType is the type of every delta enclosure
const deltaMimeType = "application/octet-stream"

type attribute struct {
	Key   string // qualified name, e.g. "sparkle:version"
	Value string
}

// enclosureBuilder makes ordered enclosure attribute sets for a document's sparkle prefix
type enclosureBuilder struct {
	prefix string
}

// primary returns the attributes of the release's main download enclosure
func (b enclosureBuilder) primary(r domain.Release) ([]attribute, error) {
	archiveURL, err := archiveURL(r)
	if err != nil {
		return nil, err
	}
	attrs := []attribute{
		{Key: "url", Value: archiveURL.String()},
		{Key: b.qname(attrVersion), Value: r.Version},
		{Key: b.qname(attrShortVersionString), Value: r.ShortVersion},
		{Key: "length", Value: strconv.FormatInt(r.FileSize, 10)},
		{Key: "type", Value: r.MimeType},
	}
	return b.withSignatures(attrs, r.EdSignature, r.DSASignature), nil
}

// delta returns the attributes of a delta enclosure. Version fields mirror the owning release.
func (b enclosureBuilder) delta(r domain.Release, d domain.Delta) ([]attribute, error) {
	archiveURL, err := archiveURL(r)
	if err != nil {
		return nil, err
	}
	deltaURL, err := ArtifactURL(archiveURL, d.FileName())
	if err != nil {
		return nil, fmt.Errorf("delta from %s: %w", d.FromVersion, err)
	}
	attrs := []attribute{
		{Key: "url", Value: deltaURL},
		{Key: b.qname(attrVersion), Value: r.Version},
		{Key: b.qname(attrShortVersionString), Value: r.ShortVersion},
		{Key: b.qname(attrDeltaFrom), Value: d.FromVersion},
		{Key: "length", Value: strconv.FormatInt(d.FileSize, 10)},
		{Key: "type", Value: deltaMimeType},
	}
	return b.withSignatures(attrs, d.EdSignature, d.DSASignature), nil
}

func (b enclosureBuilder) withSignatures(attrs []attribute, ed, dsa string) []attribute {
	if ed != "" {
		attrs = append(attrs, attribute{Key: b.qname(attrEdSignature), Value: ed})
	}
	if dsa != "" {
		attrs = append(attrs, attribute{Key: b.qname(attrDSASignature), Value: dsa})
	}
	return attrs
}

func (b enclosureBuilder) qname(local string) string {
	return b.prefix + ":" + local
}

// archiveURL parses the release download location, it has to be an absolute URL
func archiveURL(r domain.Release) (*url.URL, error) {
	if r.ArchiveURL == "" {
		return nil, fmt.Errorf("%w for version %s", ErrMissingArchiveURL, r.Version)
	}
	u, err := url.Parse(r.ArchiveURL)
	if err != nil {
		return nil, fmt.Errorf("%w for version %s: %v", ErrMissingArchiveURL, r.Version, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w for version %s: %q is not absolute", ErrMissingArchiveURL, r.Version, r.ArchiveURL)
	}
	return u, nil
}

// ArtifactURL percent-encodes fileName and resolves it against base, so the artifact
// sits next to base, e.g. (https://host/dl/App-2.zip, "App 1-2.delta") -> https://host/dl/App%201-2.delta
func ArtifactURL(base *url.URL, fileName string) (string, error) {
	ref, err := url.Parse("./" + url.PathEscape(fileName))
	if err != nil {
		return "", fmt.Errorf("escape artifact name %q: %w", fileName, err)
	}
	return base.ResolveReference(ref).String(), nil
}
