package feed

import (
	"fmt"
	"io"
	"os"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// sparklePrefix is the key gofeed uses for the sparkle namespace extensions
const sparklePrefix = "sparkle"

// Inspect parses an appcast as a generic RSS feed and summarizes its items
func Inspect(r io.Reader) (*Summary, error) {
	parser := gofeed.NewParser()
	f, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	result := &Summary{
		Title: f.Title,
		Items: make([]Item, 0, len(f.Items)),
	}
	for _, item := range f.Items {
		parsed := Item{
			Title:       item.Title,
			PubDate:     item.Published,
			Description: item.Description,
		}

		if len(item.Enclosures) > 0 {
			parsed.URL = item.Enclosures[0].URL
			parsed.Length = item.Enclosures[0].Length
			parsed.Type = item.Enclosures[0].Type
		}

		sparkle := item.Extensions[sparklePrefix]
		if v := firstExtension(sparkle, "minimumSystemVersion"); v != nil {
			parsed.MinimumSystemVersion = v.Value
		}
		for _, link := range sparkle["releaseNotesLink"] {
			parsed.ReleaseNotesLinks = append(parsed.ReleaseNotesLinks, link.Value)
		}
		if deltas := firstExtension(sparkle, "deltas"); deltas != nil {
			for _, enc := range deltas.Children["enclosure"] {
				parsed.DeltaURLs = append(parsed.DeltaURLs, enc.Attrs["url"])
			}
		}

		result.Items = append(result.Items, parsed)
	}

	return result, nil
}

// InspectFile summarizes the appcast stored at path
func InspectFile(path string) (*Summary, error) {
	fh, err := os.Open(path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer fh.Close()
	return Inspect(fh)
}

func firstExtension(exts map[string][]ext.Extension, name string) *ext.Extension {
	if len(exts[name]) == 0 {
		return nil
	}
	return &exts[name][0]
}
