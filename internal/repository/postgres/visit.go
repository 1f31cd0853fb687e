package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shortstat/shortstat/internal/entity"
)

type visitRecord struct {
	ID           int64     `db:"id"`
	URLMappingID int64     `db:"url_mapping_id"`
	IPAddress    string    `db:"ip_address"`
	Count        int64     `db:"count"`
	Aggregated   bool      `db:"aggregated"`
	RecordedAt   time.Time `db:"recorded_at"`
}

func (r *visitRecord) toEntity() *entity.Visit {
	return &entity.Visit{
		ID:           r.ID,
		URLMappingID: r.URLMappingID,
		IPAddress:    r.IPAddress,
		Count:        r.Count,
		RecordedAt:   r.RecordedAt,
	}
}

// VisitRepository persists the visit ledger in the visits table. The
// recording mode is fixed at construction: aggregated rows are merged
// per (mapping, IP) through an upsert backed by a partial unique index,
// log rows are inserted as-is.
type VisitRepository struct {
	db   *sqlx.DB
	mode entity.VisitMode
}

func NewVisitRepository(db *sqlx.DB, mode entity.VisitMode) *VisitRepository {
	return &VisitRepository{
		db:   db,
		mode: mode,
	}
}

// Record stores one visit. In aggregate mode the find-or-create and the
// increment are a single upsert statement; the row's timestamp keeps the
// time of the first visit from that IP. In log mode every call inserts a
// fresh row.
func (r *VisitRepository) Record(ctx context.Context, mappingID int64, ipAddress string, now time.Time) error {
	const op = "repository.postgres.VisitRepository.Record"

	const upsertQuery = `INSERT INTO visits(url_mapping_id, ip_address, count, aggregated, recorded_at)
		VALUES ($1, $2, 1, TRUE, $3)
		ON CONFLICT (url_mapping_id, ip_address) WHERE aggregated
		DO UPDATE SET count = visits.count + 1`

	const insertQuery = `INSERT INTO visits(url_mapping_id, ip_address, count, aggregated, recorded_at)
		VALUES ($1, $2, 1, FALSE, $3)`

	query := insertQuery
	if r.mode == entity.VisitModeAggregate {
		query = upsertQuery
	}

	if _, err := r.db.ExecContext(ctx, query, mappingID, ipAddress, now); err != nil {
		return fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return nil
}

// ListByMappingIDs returns all visits for the given mappings ordered by
// timestamp ascending.
func (r *VisitRepository) ListByMappingIDs(ctx context.Context, mappingIDs []int64) ([]*entity.Visit, error) {
	const op = "repository.postgres.VisitRepository.ListByMappingIDs"

	if len(mappingIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM visits WHERE url_mapping_id IN (?) ORDER BY recorded_at, id`, mappingIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var recs []visitRecord

	if err := r.db.SelectContext(ctx, &recs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select from visits table: %w", op, err)
	}

	visits := make([]*entity.Visit, 0, len(recs))
	for i := range recs {
		visits = append(visits, recs[i].toEntity())
	}

	return visits, nil
}

// TotalByMappingIDs sums the visit counts across the given mappings.
// Log rows carry a count of one, so the sum is correct in both modes.
func (r *VisitRepository) TotalByMappingIDs(ctx context.Context, mappingIDs []int64) (int64, error) {
	const op = "repository.postgres.VisitRepository.TotalByMappingIDs"

	if len(mappingIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`SELECT COALESCE(SUM(count), 0) FROM visits WHERE url_mapping_id IN (?)`, mappingIDs)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var total int64

	if err := r.db.GetContext(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("%s: failed to sum visits table counts: %w", op, err)
	}

	return total, nil
}
