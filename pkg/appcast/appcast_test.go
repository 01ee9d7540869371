package appcast

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/appcast/pkg/domain"
	"github.com/umputun/appcast/pkg/feed"
)

func testReleases() []domain.Release {
	r3 := testRelease("300", "3.0")
	r3.ReleaseNotesHTML = "<ul><li>faster</li></ul>"
	r3.ReleaseNotesURL = "https://example.com/notes/3.0.html"
	r3.LocalizedReleaseNotes = map[string]string{"de": "https://example.com/de/3.0.html", "ja": "https://example.com/ja/3.0.html"}
	r3.EdSignature = "ed300"
	r3.Deltas = []domain.Delta{{FromVersion: "200", ArchivePath: "/build/MyApp200-300.delta", FileSize: 99, EdSignature: "d-ed"}}

	r2 := testRelease("200", "2.0")
	r2.DSASignature = "dsa200"
	return []domain.Release{r3, r2, testRelease("100", "1.0")}
}

func enclosureAttrs(t *testing.T, d *Document) map[string][]string {
	t.Helper()
	res := map[string][]string{}
	for _, item := range d.Items() {
		enc := item.SelectElement("enclosure")
		require.NotNil(t, enc)
		var attrs []string
		for _, a := range enc.Attr {
			attrs = append(attrs, a.FullKey()+"="+a.Value)
		}
		res[enc.SelectAttrValue("sparkle:version", "")] = attrs
	}
	return res
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appcast.xml")

	report, err := Write(path, testReleases(), Options{})
	require.NoError(t, err)
	assert.Equal(t, CreatedMissing, report.Status)
	assert.Equal(t, []string{"300", "200", "100"}, report.Created)
	assert.Equal(t, 3, report.Items)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report.Data, data)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`), out)
	assert.Contains(t, out, `<rss xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle" version="2.0">`)
	assert.Contains(t, out, "<title>MyApp-3.0</title>")
	assert.Contains(t, out, "<description><![CDATA[<ul><li>faster</li></ul>]]></description>")
	assert.Contains(t, out, `<sparkle:releaseNotesLink xml:lang="ja">https://example.com/ja/3.0.html</sparkle:releaseNotesLink>`)
	assert.Contains(t, out, "\n      <sparkle:minimumSystemVersion>10.13</sparkle:minimumSystemVersion>\n")
	assert.Contains(t, out, `sparkle:deltaFrom="200" length="99" type="application/octet-stream" sparkle:edSignature="d-ed"/>`)
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appcast.xml")
	require.NoError(t, os.WriteFile(path, []byte(existingFeed), 0o600))

	inMemory := mustParse(t, existingFeed)
	_, err := inMemory.Merge(testReleases())
	require.NoError(t, err)

	_, err = Write(path, testReleases(), Options{})
	require.NoError(t, err)

	written, err := LoadDocument(path)
	require.NoError(t, err)
	require.Equal(t, LoadedExisting, written.Status)
	assert.Equal(t, itemVersions(inMemory), itemVersions(written))
	assert.Equal(t, []string{"100", "300", "200"}, itemVersions(written))
	assert.Equal(t, enclosureAttrs(t, inMemory), enclosureAttrs(t, written))

	// same document through an independent rss parser
	summary, err := feed.InspectFile(path)
	require.NoError(t, err)
	require.Len(t, summary.Items, 3)
	assert.Equal(t, "MyApp", summary.Title)
	assert.Equal(t, "10.13", summary.Items[0].MinimumSystemVersion)
}

func TestWrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	once, twice := filepath.Join(dir, "once.xml"), filepath.Join(dir, "twice.xml")
	require.NoError(t, os.WriteFile(once, []byte(existingFeed), 0o600))
	require.NoError(t, os.WriteFile(twice, []byte(existingFeed), 0o600))

	_, err := Write(once, testReleases(), Options{})
	require.NoError(t, err)
	_, err = Write(twice, testReleases(), Options{})
	require.NoError(t, err)
	report, err := Write(twice, testReleases(), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{"300", "200", "100"}, report.Updated)

	docOnce, err := LoadDocument(once)
	require.NoError(t, err)
	docTwice, err := LoadDocument(twice)
	require.NoError(t, err)
	assert.Equal(t, itemVersions(docOnce), itemVersions(docTwice))
	assert.Equal(t, enclosureAttrs(t, docOnce), enclosureAttrs(t, docTwice))

	sumOnce, err := feed.InspectFile(once)
	require.NoError(t, err)
	sumTwice, err := feed.InspectFile(twice)
	require.NoError(t, err)
	assert.Equal(t, sumOnce, sumTwice)

	for i, item := range docTwice.Items() {
		assert.Equal(t, localizedLinks(docOnce.Items()[i]), localizedLinks(item))
		assert.Equal(t, defaultLinks(docOnce.Items()[i]), defaultLinks(item))
	}
}

func TestWrite_Errors(t *testing.T) {
	t.Run("no releases", func(t *testing.T) {
		_, err := Write(filepath.Join(t.TempDir(), "appcast.xml"), nil, Options{})
		assert.EqualError(t, err, "no releases to merge")
	})

	t.Run("missing archive url leaves destination untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "appcast.xml")
		require.NoError(t, os.WriteFile(path, []byte(existingFeed), 0o600))

		releases := testReleases()
		releases[2].ArchiveURL = ""
		_, err := Write(path, releases, Options{})
		require.ErrorIs(t, err, ErrMissingArchiveURL)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, existingFeed, string(data))
	})

	t.Run("malformed feed leaves destination untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "appcast.xml")
		atom := `<feed xmlns="http://www.w3.org/2005/Atom"><title>x</title></feed>`
		require.NoError(t, os.WriteFile(path, []byte(atom), 0o600))

		_, err := Write(path, testReleases(), Options{})
		require.ErrorIs(t, err, ErrMalformedFeed)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, atom, string(data))
	})

	t.Run("unparseable feed replaced", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "appcast.xml")
		require.NoError(t, os.WriteFile(path, []byte(`<rss version="2.0"><channel`), 0o600))

		report, err := Write(path, testReleases(), Options{})
		require.NoError(t, err)
		assert.Equal(t, CreatedUnparseable, report.Status)
		assert.Equal(t, 3, report.Items)
	})

	t.Run("unparseable feed in strict mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "appcast.xml")
		broken := `<rss version="2.0"><channel`
		require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))

		_, err := Write(path, testReleases(), Options{Strict: true})
		require.ErrorIs(t, err, ErrUnparseableFeed)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, broken, string(data))
	})
}

func TestWrite_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appcast.xml")
	report, err := Write(path, testReleases(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Items)
	assert.NotEmpty(t, report.Data)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateOutput(t *testing.T) {
	doc := newDocument(CreatedMissing, nil)
	_, err := doc.Merge(testReleases())
	require.NoError(t, err)
	data, err := doc.Bytes()
	require.NoError(t, err)

	assert.NoError(t, validateOutput(data, 3))
	assert.ErrorIs(t, validateOutput(data, 4), ErrInvalidOutput)
	assert.ErrorIs(t, validateOutput([]byte(`<rss><channel>`+"\x00"), 0), ErrInvalidOutput)
	assert.ErrorIs(t, validateOutput([]byte(`<feed/>`), 0), ErrInvalidOutput)
}
