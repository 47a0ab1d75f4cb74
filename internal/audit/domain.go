// Package audit persists the append-only log of authorization decisions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit row. Entries are appended by the recorder and
// never updated or deleted by the engine; retention is handled by the purge
// job.
type Entry struct {
	ID         int64
	ActorID    uuid.UUID
	ResourceID *uuid.UUID
	Action     string
	Kind       string
	Success    bool
	Reason     string
	CreatedAt  time.Time
}

// TimelineFilters narrows the audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  string
	Action   string
	Reason   string
	Page     int
	PageSize int
}

// PagingInfo describes the window returned by Timeline.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
