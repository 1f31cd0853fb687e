// Package entity defines the domain types shared by the services and
// repositories: URL mappings, recorded visits and stats reports.
package entity

import "time"

// URLMapping represents the durable association between a short code and
// an original URL, together with its aggregate visit counter.
type URLMapping struct {
	ID          int64     // ID is the unique identifier of the mapping in the store.
	ShortCode   string    // ShortCode is the fixed-length base62 code assigned on creation.
	OriginalURL string    // OriginalURL is the destination the short code resolves to.
	VisitCount  int64     // VisitCount is the aggregate number of visits, per the configured count mode.
	CreatedAt   time.Time // CreatedAt is the timestamp when the mapping was created.
	UpdatedAt   time.Time // UpdatedAt is the timestamp when the mapping was last updated.
}

// Visit is a recorded instance of a visitor following a short code.
// In aggregated mode there is at most one Visit per (mapping, IP) pair and
// Count carries the number of repeat visits; in log mode every visit is its
// own row with Count fixed at 1.
type Visit struct {
	ID           int64
	URLMappingID int64
	IPAddress    string
	Count        int64
	RecordedAt   time.Time
}

// VisitRecord is a Visit annotated with the short code of its owning
// mapping, as exposed in stats reports.
type VisitRecord struct {
	ShortCode  string
	IPAddress  string
	Count      int64
	RecordedAt time.Time
}

// StatsReport aggregates mapping and ledger data for one original URL.
type StatsReport struct {
	OriginalURL string
	ShortCodes  []string
	TotalVisits int64
	Visits      []VisitRecord
}
