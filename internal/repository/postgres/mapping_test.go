package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/repository"
)

var (
	errUnknown      = errors.New("unknown error")
	errAffectedRows = errors.New("affected rows error")
)

var mappingColumns = []string{"id", "short_code", "original_url", "visit_count", "created_at", "updated_at"}

func setupMappingRepository(t testing.TB) (*MappingRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewMappingRepository(db, 0)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestMappingRepository_Create(t *testing.T) {
	t.Run("short code exists", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", int64(0)).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		mapping, err := repo.Create(context.TODO(), "code1", "https://example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrShortCodeExists)
		assert.Nil(t, mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", int64(0)).
			WillReturnError(errUnknown)

		mapping, err := repo.Create(context.TODO(), "code1", "https://example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		rows := sqlmock.NewRows(mappingColumns).
			AddRow(1, "code1", "https://example.com", 0, time.Time{}, time.Time{})

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", int64(0)).
			WillReturnRows(rows)

		wantMapping := entity.URLMapping{
			ID:          1,
			ShortCode:   "code1",
			OriginalURL: "https://example.com",
		}

		mapping, err := repo.Create(context.TODO(), "code1", "https://example.com")

		assert.NoError(t, err)
		assert.NotNil(t, mapping)
		assert.Equal(t, wantMapping, *mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMappingRepository_FindByShortCode(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("code2").
			WillReturnError(sql.ErrNoRows)

		mapping, err := repo.FindByShortCode(context.TODO(), "code2")

		assert.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrURLNotFound)
		assert.Nil(t, mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("code1").
			WillReturnError(errUnknown)

		mapping, err := repo.FindByShortCode(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		rows := sqlmock.NewRows(mappingColumns).
			AddRow(1, "code1", "https://example.com", 3, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("code1").
			WillReturnRows(rows)

		wantMapping := entity.URLMapping{
			ID:          1,
			ShortCode:   "code1",
			OriginalURL: "https://example.com",
			VisitCount:  3,
		}

		mapping, err := repo.FindByShortCode(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.NotNil(t, mapping)
		assert.Equal(t, wantMapping, *mapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMappingRepository_FindByOriginalURL(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("https://example.com").
			WillReturnError(errUnknown)

		mappings, err := repo.FindByOriginalURL(context.TODO(), "https://example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, mappings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no mappings", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("https://example.com").
			WillReturnRows(sqlmock.NewRows(mappingColumns))

		mappings, err := repo.FindByOriginalURL(context.TODO(), "https://example.com")

		assert.NoError(t, err)
		assert.Empty(t, mappings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		rows := sqlmock.NewRows(mappingColumns).
			AddRow(1, "code1", "https://example.com", 2, time.Time{}, time.Time{}).
			AddRow(2, "code2", "https://example.com", 0, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("https://example.com").
			WillReturnRows(rows)

		mappings, err := repo.FindByOriginalURL(context.TODO(), "https://example.com")

		assert.NoError(t, err)
		assert.Len(t, mappings, 2)
		assert.Equal(t, "code1", mappings[0].ShortCode)
		assert.Equal(t, "code2", mappings[1].ShortCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMappingRepository_IncrementVisits(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("code2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.IncrementVisits(context.TODO(), "code2")

		assert.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrURLNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("code1").
			WillReturnError(errUnknown)

		err := repo.IncrementVisits(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("affected rows error", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("code1").
			WillReturnResult(sqlmock.NewErrorResult(errAffectedRows))

		err := repo.IncrementVisits(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errAffectedRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("code1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementVisits(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMappingRepository_IncrementVisitsByOriginalURL(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("https://example.com").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.IncrementVisitsByOriginalURL(context.TODO(), "https://example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrURLNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupMappingRepository(t)

		mock.ExpectExec(`UPDATE urls`).
			WithArgs("https://example.com").
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.IncrementVisitsByOriginalURL(context.TODO(), "https://example.com")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
