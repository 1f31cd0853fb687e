package entity

// VisitMode controls how the visit ledger records repeat visits.
type VisitMode string

const (
	// VisitModeAggregate merges repeat visits from the same IP into a
	// single row whose count is incremented in place.
	VisitModeAggregate VisitMode = "aggregate"
	// VisitModeLog inserts one row per physical visit.
	VisitModeLog VisitMode = "log"
)

// CountMode controls how the aggregate visit counter on mappings is
// maintained and how stats totals are computed.
type CountMode string

const (
	// CountModePerOriginalURL bumps the counter on every mapping sharing
	// the visited mapping's original URL, so stats queried by original URL
	// reflect all aliases.
	CountModePerOriginalURL CountMode = "per_original_url"
	// CountModePerMapping bumps only the visited mapping's counter.
	CountModePerMapping CountMode = "per_mapping"
	// CountModeVisitRows leaves mapping counters untouched and derives
	// totals from the visit ledger.
	CountModeVisitRows CountMode = "visit_rows"
)

// Valid reports whether m is a known visit mode.
func (m VisitMode) Valid() bool {
	return m == VisitModeAggregate || m == VisitModeLog
}

// Valid reports whether m is a known count mode.
func (m CountMode) Valid() bool {
	return m == CountModePerOriginalURL || m == CountModePerMapping || m == CountModeVisitRows
}
