package appcast

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/beevik/etree"
)

// SparkleNS is the namespace of update-specific elements and attributes
const SparkleNS = "http://www.andymatuschak.org/xml-namespaces/sparkle"

const defaultPrefix = "sparkle"

// element and attribute names, plain RSS names have no namespace
const (
	tagRSS                  = "rss"
	tagChannel              = "channel"
	tagItem                 = "item"
	tagTitle                = "title"
	tagPubDate              = "pubDate"
	tagDescription          = "description"
	tagEnclosure            = "enclosure"
	tagMinimumSystemVersion = "minimumSystemVersion"
	tagReleaseNotesLink     = "releaseNotesLink"
	tagDeltas               = "deltas"

	attrVersion            = "version"
	attrShortVersionString = "shortVersionString"
	attrDeltaFrom          = "deltaFrom"
	attrEdSignature        = "edSignature"
	attrDSASignature       = "dsaSignature"
)

// LoadStatus tells how a Document came to be
type LoadStatus int

const (
	LoadedExisting     LoadStatus = iota // destination parsed as an appcast
	CreatedMissing                       // destination did not exist, fresh document
	CreatedUnparseable                   // destination could not be read or parsed, fresh document
)

// String returns a short name of the status
func (s LoadStatus) String() string {
	switch s {
	case LoadedExisting:
		return "existing"
	case CreatedMissing:
		return "missing"
	case CreatedUnparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

// Document is an appcast tree loaded once per run and edited in place
type Document struct {
	Status  LoadStatus
	LoadErr error // read or parse error behind CreatedUnparseable

	doc    *etree.Document
	root   *etree.Element
	prefix string // prefix bound to SparkleNS on the root
}

// LoadDocument reads the appcast at path. A missing or unparseable file yields a fresh
// document, Status tells which case happened. A file that parses but whose root is not a
// single rss element is rejected with ErrMalformedFeed.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // destination path comes from the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("[DEBUG] appcast %s not found, creating new one", path)
			return newDocument(CreatedMissing, nil), nil
		}
		log.Printf("[WARN] can't read appcast %s, creating new one: %v", path, err)
		return newDocument(CreatedUnparseable, err), nil
	}
	return parseDocument(path, data)
}

func parseDocument(path string, data []byte) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		log.Printf("[WARN] can't parse appcast %s, creating new one: %v", path, err)
		return newDocument(CreatedUnparseable, err), nil
	}

	roots := doc.ChildElements()
	if len(roots) == 0 {
		log.Printf("[WARN] appcast %s has no root element, creating new one", path)
		return newDocument(CreatedUnparseable, errors.New("no root element")), nil
	}
	if len(roots) != 1 || roots[0].Tag != tagRSS || roots[0].Space != "" {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFeed, path)
	}

	d := &Document{Status: LoadedExisting, doc: doc, root: roots[0]}
	d.prefix = d.bindPrefix()
	return d, nil
}

// newDocument synthesizes an empty rss root with the namespace declaration and schema version
func newDocument(status LoadStatus, loadErr error) *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement(tagRSS)
	root.CreateAttr("xmlns:"+defaultPrefix, SparkleNS)
	root.CreateAttr("version", "2.0")
	return &Document{Status: status, LoadErr: loadErr, doc: doc, root: root, prefix: defaultPrefix}
}

// bindPrefix finds the prefix declared for SparkleNS on the root and declares one if absent
func (d *Document) bindPrefix() string {
	for _, a := range d.root.Attr {
		if a.Space == "xmlns" && a.Value == SparkleNS {
			return a.Key
		}
	}
	d.root.CreateAttr("xmlns:"+defaultPrefix, SparkleNS)
	return defaultPrefix
}

// qname qualifies a local name with the document's sparkle prefix
func (d *Document) qname(local string) string {
	return d.prefix + ":" + local
}

// Channel returns the single channel element, creating it with the given title if absent
func (d *Document) Channel(title string) *etree.Element {
	if ch, ok := findElement(d.root, "", tagChannel); ok {
		return ch
	}
	ch := d.root.CreateElement(tagChannel)
	ch.CreateElement(tagTitle).SetText(title)
	return ch
}

// Items returns the channel items in document order, empty if there is no channel yet
func (d *Document) Items() []*etree.Element {
	ch, ok := findElement(d.root, "", tagChannel)
	if !ok {
		return nil
	}
	return findElements(ch, "", tagItem)
}
