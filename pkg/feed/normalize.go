package feed

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/feedtide/feedtide/pkg/domain"
)

// ugcPolicy strips scripts and event handlers from entry bodies while
// keeping the formatting tags feeds legitimately use
var ugcPolicy = bluemonday.UGCPolicy()

// normalizeFeed converts a parsed gofeed document into the domain
// representation, assigning every entry a stable dedup identity
func normalizeFeed(parsed *gofeed.Feed) *domain.ParsedFeed {
	result := &domain.ParsedFeed{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		SiteURL:     strings.TrimSpace(parsed.Link),
		Entries:     make([]domain.ParsedEntry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		result.Entries = append(result.Entries, normalizeEntry(item))
	}
	return result
}

func normalizeEntry(item *gofeed.Item) domain.ParsedEntry {
	entry := domain.ParsedEntry{
		GUID:    entryGUID(item),
		Title:   strings.TrimSpace(item.Title),
		URL:     strings.TrimSpace(item.Link),
		Content: ugcPolicy.Sanitize(item.Content),
		Summary: ugcPolicy.Sanitize(item.Description),
	}

	if entry.Title == "" {
		entry.Title = "Untitled"
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = strings.TrimSpace(item.Authors[0].Name)
	}

	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		entry.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		entry.PublishedAt = &t
	}

	return entry
}

// entryGUID derives the dedup identity for an entry. Preference order:
// the publisher-provided id verbatim, then link combined with title, then
// title combined with the entry timestamp. The last resort falls back to
// fetch time, which makes such entries effectively non-dedupable; feeds
// that degenerate this far carry no usable identity at all.
func entryGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}

	if item.Link != "" {
		return item.Link + "-" + item.Title
	}

	title := item.Title
	if title == "" {
		title = "untitled"
	}
	ts := time.Now().UTC()
	if item.PublishedParsed != nil {
		ts = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		ts = item.UpdatedParsed.UTC()
	}
	return title + "-" + ts.Format(time.RFC3339)
}
