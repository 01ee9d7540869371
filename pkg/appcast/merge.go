package appcast

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/beevik/etree"

	"github.com/umputun/appcast/pkg/domain"
)

// MaxNewItems limits how many releases a single merge may process once new items are involved.
// Existing items are always updated, even past the limit.
const MaxNewItems = 5

var (
	// ErrMalformedFeed means the destination parsed but its root is not a single rss element
	ErrMalformedFeed = errors.New("malformed appcast")
	// ErrMissingArchiveURL means a release has no usable download URL
	ErrMissingArchiveURL = errors.New("bad archive name or feed URL")
	// ErrInvalidOutput means the serialized appcast failed to parse back
	ErrInvalidOutput = errors.New("generated appcast is invalid")
	// ErrUnparseableFeed is returned in strict mode instead of replacing a feed that can't be parsed
	ErrUnparseableFeed = errors.New("existing appcast can't be parsed")
)

// Result lists release versions by what the merge did with them
type Result struct {
	Created []string
	Updated []string
	Skipped []string
}

type decision int

const (
	decisionSkip decision = iota
	decisionCreate
	decisionUpdate
)

func (d decision) String() string {
	switch d {
	case decisionCreate:
		return "create"
	case decisionUpdate:
		return "update"
	default:
		return "skip"
	}
}

// decide applies the creation cap: a release without a matching item is skipped
// once processed releases reached MaxNewItems, matched releases are never skipped.
func decide(isNew bool, processed int) decision {
	switch {
	case !isNew:
		return decisionUpdate
	case processed >= MaxNewItems:
		return decisionSkip
	default:
		return decisionCreate
	}
}

// Merge reconciles the channel items with releases, in the given order.
// The processed counter is shared by the whole list and counts updated items too.
// An error leaves the tree partially merged, the caller must not persist it.
func (d *Document) Merge(releases []domain.Release) (Result, error) {
	res := Result{}
	if len(releases) == 0 {
		return res, nil
	}

	channel := d.Channel(releases[0].BaseName())
	builder := enclosureBuilder{prefix: d.prefix}
	processed := 0
	for _, r := range releases {
		item, found := d.findItem(channel, r.Version)
		act := decide(!found, processed)
		log.Printf("[DEBUG] version %s (%s): %s, processed %d", r.Version, r.ShortVersion, act, processed)
		switch act {
		case decisionSkip:
			res.Skipped = append(res.Skipped, r.Version)
			continue
		case decisionCreate:
			item = channel.CreateElement(tagItem)
			res.Created = append(res.Created, r.Version)
		case decisionUpdate:
			res.Updated = append(res.Updated, r.Version)
		}
		processed++

		if err := d.mergeItem(item, r, builder); err != nil {
			return res, fmt.Errorf("merge version %s: %w", r.Version, err)
		}
	}
	return res, nil
}

// findItem returns the first channel item with an enclosure of the given version
func (d *Document) findItem(channel *etree.Element, version string) (*etree.Element, bool) {
	for _, item := range findElements(channel, "", tagItem) {
		for _, enc := range findElements(item, "", tagEnclosure) {
			if a, ok := findAttr(enc, SparkleNS, attrVersion); ok && a.Value == version {
				return item, true
			}
		}
	}
	return nil, false
}

// mergeItem synchronizes all fields of a single item with the release
func (d *Document) mergeItem(item *etree.Element, r domain.Release, builder enclosureBuilder) error {
	if _, ok := findElement(item, "", tagTitle); !ok {
		item.CreateElement(tagTitle).SetText(r.ShortVersion)
	}
	if _, ok := findElement(item, "", tagPubDate); !ok {
		item.CreateElement(tagPubDate).SetText(r.PubDate)
	}

	if r.ReleaseNotesHTML != "" {
		desc, _ := findOrCreateElement(item, "", tagDescription, tagDescription)
		setCData(desc, r.ReleaseNotesHTML)
	}

	minVer, _ := findOrCreateElement(item, SparkleNS, tagMinimumSystemVersion, d.qname(tagMinimumSystemVersion))
	setText(minVer, r.MinimumSystemVersion)

	d.mergeReleaseNotes(item, r)

	attrs, err := builder.primary(r)
	if err != nil {
		return err
	}
	enclosure, _ := findOrCreateElement(item, "", tagEnclosure, tagEnclosure)
	setAttrs(enclosure, attrs)

	return d.mergeDeltas(item, r, builder)
}

// mergeReleaseNotes syncs the default link with ReleaseNotesURL and the set of
// language-tagged links with the keys of LocalizedReleaseNotes
func (d *Document) mergeReleaseNotes(item *etree.Element, r domain.Release) {
	var defaultLink *etree.Element
	localized := map[string]*etree.Element{}
	for _, link := range findElements(item, SparkleNS, tagReleaseNotesLink) {
		lang, ok := langAttr(link)
		if !ok {
			if defaultLink == nil {
				defaultLink = link
			}
			continue
		}
		if _, wanted := r.LocalizedReleaseNotes[lang]; !wanted {
			item.RemoveChild(link)
			continue
		}
		localized[lang] = link
	}

	switch {
	case r.ReleaseNotesURL != "" && defaultLink != nil:
		setText(defaultLink, r.ReleaseNotesURL)
	case r.ReleaseNotesURL != "":
		item.CreateElement(d.qname(tagReleaseNotesLink)).SetText(r.ReleaseNotesURL)
	case defaultLink != nil:
		item.RemoveChild(defaultLink)
	}

	// stored URLs of languages already present are kept as is
	langs := make([]string, 0, len(r.LocalizedReleaseNotes))
	for lang := range r.LocalizedReleaseNotes {
		if _, ok := localized[lang]; !ok {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	for _, lang := range langs {
		link := item.CreateElement(d.qname(tagReleaseNotesLink))
		link.CreateAttr("xml:lang", lang)
		link.SetText(r.LocalizedReleaseNotes[lang])
	}
}

// mergeDeltas rebuilds the deltas container when the release has deltas,
// an existing container is kept untouched otherwise
func (d *Document) mergeDeltas(item *etree.Element, r domain.Release, builder enclosureBuilder) error {
	if len(r.Deltas) == 0 {
		return nil
	}
	deltas, created := findOrCreateElement(item, SparkleNS, tagDeltas, d.qname(tagDeltas))
	if !created {
		clearChildren(deltas)
	}
	for _, delta := range r.Deltas {
		attrs, err := builder.delta(r, delta)
		if err != nil {
			return err
		}
		setAttrs(deltas.CreateElement(tagEnclosure), attrs)
	}
	return nil
}
