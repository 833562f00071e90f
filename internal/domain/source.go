package domain

import "context"

// FetchRequest identifies one episode stream and where to pick it up from
type FetchRequest struct {
	AnimeID       string
	EpisodeNumber int
	AudioType     AudioType

	// Offset is the number of bytes already on disk. A source that supports
	// ranged resumption continues from here; one that does not restarts from
	// zero and reports Resumed=false.
	Offset int64
}

// FetchInfo describes the outcome of a completed fetch
type FetchInfo struct {
	// TotalSize is the full content size in bytes, 0 when the source never
	// reported one
	TotalSize int64

	// Resumed is true when the source honored the requested offset
	Resumed bool
}

// ProgressFunc receives coalesced progress callbacks during a fetch.
// total is 0 while the size is unknown.
type ProgressFunc func(written, total int64)

// ContentSource streams remote episode content to a local file
type ContentSource interface {
	// Fetch streams the episode identified by req into dest, calling report
	// at a bounded frequency. It returns promptly when ctx is canceled,
	// leaving whatever bytes were written in place for the caller to keep or
	// delete.
	Fetch(ctx context.Context, req FetchRequest, dest string, report ProgressFunc) (*FetchInfo, error)
}
