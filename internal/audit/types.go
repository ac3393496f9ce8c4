package audit

import "time"

// Operation names what happened to an entity.
type Operation string

const (
	OpCreate  Operation = "create"
	OpDelete  Operation = "delete"
	OpCommand Operation = "command"
	OpToggle  Operation = "toggle"
	OpExecute Operation = "execute"
	OpLogin   Operation = "login"
)

// Entity types recorded in the log.
const (
	EntityDevice  = "device"
	EntityAction  = "action"
	EntitySession = "session"
)

const (
	// DefaultLimit is the page size when a filter sets none.
	DefaultLimit = 50

	// MaxLimit caps a single page.
	MaxLimit = 200
)

// Entry is one audit record.
type Entry struct {
	ID         string         `json:"id"`
	Operation  Operation      `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Operation  Operation
	EntityType string
	EntityID   string
	Since      time.Time
	Limit      int
	Offset     int
}

// Page is one page of entries, newest first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// normalise clamps paging to sane bounds.
func (f *Filter) normalise() {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
