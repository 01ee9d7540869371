package appcast

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/beevik/etree"

	"github.com/umputun/appcast/pkg/feed"
)

// Bytes serializes the document indented by two spaces with empty elements collapsed
func (d *Document) Bytes() ([]byte, error) {
	d.doc.WriteSettings.CanonicalEndTags = false
	d.doc.Indent(2)
	data, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize appcast: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("<?xml")) {
		data = append([]byte(xml.Header), data...)
	}
	return data, nil
}

// validateOutput parses serialized bytes back, both as a tree and as an RSS feed,
// and checks the item count survived the round trip
func validateOutput(data []byte, items int) error {
	check := etree.NewDocument()
	check.ReadSettings.PreserveCData = true
	if err := check.ReadFromBytes(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	roots := check.ChildElements()
	if len(roots) != 1 || roots[0].Tag != tagRSS {
		return fmt.Errorf("%w: no single rss root", ErrInvalidOutput)
	}

	summary, err := feed.Inspect(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(summary.Items) != items {
		return fmt.Errorf("%w: %d items after parsing, expected %d", ErrInvalidOutput, len(summary.Items), items)
	}
	return nil
}

// writeFile replaces the destination content
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // appcast is a public file
		return fmt.Errorf("write appcast %s: %w", path, err)
	}
	return nil
}
