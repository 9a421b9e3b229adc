package domain

import "time"

// ParsedFeed is a normalized feed document produced by one fetch
type ParsedFeed struct {
	Title       string
	Description string
	SiteURL     string
	Entries     []ParsedEntry
}

// ParsedEntry is a normalized feed entry with a stable dedup identity
type ParsedEntry struct {
	GUID        string
	Title       string
	URL         string
	Content     string
	Summary     string
	Author      string
	PublishedAt *time.Time
}
