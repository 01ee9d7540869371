// Package appcast merges release descriptions into an update feed (appcast) file.
// The whole operation is one transaction: the destination is read once, edited in memory,
// validated and written once, and left untouched on any error.
package appcast

import (
	"errors"
	"fmt"
	"log"

	"github.com/umputun/appcast/pkg/domain"
)

// Options tune a Write call
type Options struct {
	Strict bool // fail instead of replacing a destination that can't be parsed
	DryRun bool // merge and validate without writing the destination
}

// Report describes a completed Write
type Report struct {
	Result
	Status LoadStatus
	Items  int    // items in the channel after the merge
	Data   []byte // serialized appcast
}

// Write merges releases into the appcast at path. Releases are processed in the given
// order, usually newest first, and the first one names a newly created channel.
// Concurrent calls for the same path must be serialized by the caller.
func Write(path string, releases []domain.Release, opts Options) (*Report, error) {
	if len(releases) == 0 {
		return nil, errors.New("no releases to merge")
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return nil, fmt.Errorf("load appcast: %w", err)
	}
	if doc.Status == CreatedUnparseable && opts.Strict {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnparseableFeed, path, doc.LoadErr)
	}

	res, err := doc.Merge(releases)
	if err != nil {
		return nil, err
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	items := len(doc.Items())
	if err := validateOutput(data, items); err != nil {
		return nil, err
	}

	report := &Report{Result: res, Status: doc.Status, Items: items, Data: data}
	if opts.DryRun {
		log.Printf("[INFO] dry run, %s not written", path)
		return report, nil
	}
	if err := writeFile(path, data); err != nil {
		return nil, err
	}
	log.Printf("[INFO] appcast %s written, %d created, %d updated, %d skipped, %d items total",
		path, len(res.Created), len(res.Updated), len(res.Skipped), items)
	return report, nil
}
