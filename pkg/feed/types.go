// Package feed reads written appcasts back as plain RSS, independent of the tree used to edit them
package feed

// Summary is a read-only view of a parsed appcast
type Summary struct {
	Title string
	Items []Item
}

// Item represents a single release entry of an appcast
type Item struct {
	Title                string
	PubDate              string
	Description          string
	URL                  string // primary enclosure url
	Length               string // primary enclosure length, as written
	Type                 string
	MinimumSystemVersion string
	ReleaseNotesLinks    []string // default and localized links, document order
	DeltaURLs            []string
}
