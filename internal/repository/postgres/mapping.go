package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/repository"
)

type mappingRecord struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	VisitCount  int64     `db:"visit_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *mappingRecord) toEntity() *entity.URLMapping {
	return &entity.URLMapping{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		VisitCount:  r.VisitCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// MappingRepository persists URL mappings in the urls table. Short-code
// uniqueness is enforced by the table's unique constraint, so the
// existence check and insert are a single atomic statement.
type MappingRepository struct {
	db            *sqlx.DB
	initialVisits int64
}

// NewMappingRepository returns a repository whose Create seeds new
// mappings with the given initial visit count.
func NewMappingRepository(db *sqlx.DB, initialVisits int64) *MappingRepository {
	return &MappingRepository{
		db:            db,
		initialVisits: initialVisits,
	}
}

func (r *MappingRepository) Create(ctx context.Context, shortCode, originalURL string) (*entity.URLMapping, error) {
	const op = "repository.postgres.MappingRepository.Create"
	const query = `INSERT INTO urls(short_code, original_url, visit_count) VALUES ($1, $2, $3) RETURNING *`

	var rec mappingRecord

	if err := r.db.GetContext(ctx, &rec, query, shortCode, originalURL, r.initialVisits); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *MappingRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.URLMapping, error) {
	const op = "repository.postgres.MappingRepository.FindByShortCode"
	const query = `SELECT * FROM urls WHERE short_code = $1`

	var rec mappingRecord

	if err := r.db.GetContext(ctx, &rec, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *MappingRepository) FindByOriginalURL(ctx context.Context, originalURL string) ([]*entity.URLMapping, error) {
	const op = "repository.postgres.MappingRepository.FindByOriginalURL"
	const query = `SELECT * FROM urls WHERE original_url = $1 ORDER BY created_at, id`

	var recs []mappingRecord

	if err := r.db.SelectContext(ctx, &recs, query, originalURL); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	mappings := make([]*entity.URLMapping, 0, len(recs))
	for i := range recs {
		mappings = append(mappings, recs[i].toEntity())
	}

	return mappings, nil
}

// IncrementVisits atomically adds one to the mapping's visit counter.
// The increment happens inside the UPDATE, never as read-then-write.
func (r *MappingRepository) IncrementVisits(ctx context.Context, shortCode string) error {
	const op = "repository.postgres.MappingRepository.IncrementVisits"
	const query = `UPDATE urls SET visit_count = visit_count + 1, updated_at = now() WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrURLNotFound)
	}

	return nil
}

// IncrementVisitsByOriginalURL atomically adds one to the counter of
// every mapping sharing the given original URL.
func (r *MappingRepository) IncrementVisitsByOriginalURL(ctx context.Context, originalURL string) error {
	const op = "repository.postgres.MappingRepository.IncrementVisitsByOriginalURL"
	const query = `UPDATE urls SET visit_count = visit_count + 1, updated_at = now() WHERE original_url = $1`

	res, err := r.db.ExecContext(ctx, query, originalURL)
	if err != nil {
		return fmt.Errorf("%s: failed to update urls table rows: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrURLNotFound)
	}

	return nil
}
