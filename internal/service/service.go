// Package service implements the shortening, redirect, stats and admin
// reset operations on top of the injected mapping store and visit ledger.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/metrics"
	"github.com/shortstat/shortstat/internal/repository"
)

var (
	// ErrEmptyURL is returned when the submitted URL is empty after trimming.
	ErrEmptyURL = errors.New("empty url")
	// ErrInvalidURL is returned in strict mode when the submitted URL has
	// no scheme or no host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrMaxRetriesExceeded is returned when the retry budget for
	// generating a unique short code is exhausted.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
	// ErrInvalidKey is returned when the admin key does not match.
	ErrInvalidKey = errors.New("invalid admin key")
)

// The code space is 62^6, so collisions are vanishingly rare; the cap
// only bounds pathological behavior.
const maxShortenAttempts = 1000

// MappingRepository is the mapping store as seen by the service layer.
type MappingRepository interface {
	// Create inserts a new mapping. The uniqueness check and insert are a
	// single atomic unit; repository.ErrShortCodeExists signals a collision.
	Create(ctx context.Context, shortCode, originalURL string) (*entity.URLMapping, error)

	// FindByShortCode returns the mapping for the code, or
	// repository.ErrURLNotFound.
	FindByShortCode(ctx context.Context, shortCode string) (*entity.URLMapping, error)

	// FindByOriginalURL returns every mapping for the URL ordered by
	// creation time.
	FindByOriginalURL(ctx context.Context, originalURL string) ([]*entity.URLMapping, error)

	// IncrementVisits atomically adds one to the mapping's counter.
	IncrementVisits(ctx context.Context, shortCode string) error

	// IncrementVisitsByOriginalURL atomically adds one to the counter of
	// every mapping sharing the original URL.
	IncrementVisitsByOriginalURL(ctx context.Context, originalURL string) error
}

// VisitRepository is the visit ledger as seen by the service layer.
type VisitRepository interface {
	// Record stores one visit atomically, merging per-IP repeats when the
	// ledger runs in aggregate mode.
	Record(ctx context.Context, mappingID int64, ipAddress string, now time.Time) error

	// ListByMappingIDs returns visits ordered by timestamp ascending.
	ListByMappingIDs(ctx context.Context, mappingIDs []int64) ([]*entity.Visit, error)

	// TotalByMappingIDs sums visit counts across the mappings.
	TotalByMappingIDs(ctx context.Context, mappingIDs []int64) (int64, error)
}

// Resetter bulk-clears both stores atomically.
type Resetter interface {
	ResetAll(ctx context.Context) error
}

// CodeGenerator produces short-code candidates.
type CodeGenerator interface {
	Generate() (string, error)
}

// MappingCache is an optional read-through cache for the redirect path.
type MappingCache interface {
	Get(ctx context.Context, shortCode string) (*entity.URLMapping, error)
	Set(ctx context.Context, m *entity.URLMapping) error
	Flush(ctx context.Context) error
}

// Options carries the operating-mode configuration of the service.
type Options struct {
	// CountMode selects how aggregate counters are maintained.
	CountMode entity.CountMode
	// StrictValidation requires submitted URLs to carry a scheme and host.
	StrictValidation bool
	// ReportingLocation is the time zone visit timestamps are reported in.
	ReportingLocation *time.Location
	// MasterKey gates the administrative reset.
	MasterKey string
}

// URLService orchestrates the code generator, mapping store and visit
// ledger. It never assumes which store implementation it talks to.
type URLService struct {
	mappings MappingRepository
	visits   VisitRepository
	resetter Resetter
	gen      CodeGenerator
	cache    MappingCache // may be nil
	logger   *slog.Logger
	opts     Options
}

// New creates a URLService. cache may be nil to disable caching.
func New(mappings MappingRepository, visits VisitRepository, resetter Resetter,
	gen CodeGenerator, cache MappingCache, logger *slog.Logger, opts Options) *URLService {

	if opts.ReportingLocation == nil {
		opts.ReportingLocation = time.UTC
	}
	if !opts.CountMode.Valid() {
		opts.CountMode = entity.CountModePerOriginalURL
	}

	return &URLService{
		mappings: mappings,
		visits:   visits,
		resetter: resetter,
		gen:      gen,
		cache:    cache,
		logger:   logger,
		opts:     opts,
	}
}

// normalizeURL trims surrounding whitespace and slashes, following the
// shortening form's input handling.
func normalizeURL(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), "/")
}

func validateURL(s string) error {
	parsed, err := url.Parse(s)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// Shorten creates a new mapping for the submitted URL and returns it.
// Short-code collisions are retried with fresh codes and never surface
// to the caller.
func (s *URLService) Shorten(ctx context.Context, rawURL string) (*entity.URLMapping, error) {
	const op = "service.URLService.Shorten"

	originalURL := normalizeURL(rawURL)
	if originalURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyURL)
	}

	if s.opts.StrictValidation {
		if err := validateURL(originalURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
		}
	}

	for i := 0; i < maxShortenAttempts; i++ {
		shortCode, err := s.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		m, err := s.mappings.Create(ctx, shortCode, originalURL)
		if err != nil {
			if errors.Is(err, repository.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.cacheSet(ctx, m)
		metrics.RecordURLCreated()

		return m, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// Lookup returns the mapping for a short code without recording a visit.
func (s *URLService) Lookup(ctx context.Context, shortCode string) (*entity.URLMapping, error) {
	const op = "service.URLService.Lookup"

	m, err := s.mappings.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to look up short code: %w", op, err)
	}

	return m, nil
}

// Resolve returns the mapping for a redirect, records the visit in the
// ledger and bumps the aggregate counter per the configured count mode.
// Each store mutation is atomic on its own; a failure between them can
// leave the visit recorded in only one store.
func (s *URLService) Resolve(ctx context.Context, shortCode, ipAddress string, now time.Time) (*entity.URLMapping, error) {
	const op = "service.URLService.Resolve"

	m := s.cacheGet(ctx, shortCode)
	if m == nil {
		var err error
		m, err = s.mappings.FindByShortCode(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
		}
		s.cacheSet(ctx, m)
	}

	if err := s.visits.Record(ctx, m.ID, ipAddress, now); err != nil {
		return nil, fmt.Errorf("%s: failed to record visit: %w", op, err)
	}
	metrics.RecordVisit()

	switch s.opts.CountMode {
	case entity.CountModePerMapping:
		if err := s.mappings.IncrementVisits(ctx, m.ShortCode); err != nil {
			return nil, fmt.Errorf("%s: failed to increment visit count: %w", op, err)
		}
		m.VisitCount++
	case entity.CountModePerOriginalURL:
		if err := s.mappings.IncrementVisitsByOriginalURL(ctx, m.OriginalURL); err != nil {
			return nil, fmt.Errorf("%s: failed to increment visit counts: %w", op, err)
		}
		m.VisitCount++
	case entity.CountModeVisitRows:
		// Totals come from the ledger; the mapping counter stays put.
	}

	metrics.RecordRedirect()

	return m, nil
}

// Stats builds the report for an original URL: all short codes pointing
// at it, the total visits per the count mode, and every visit record
// sorted by timestamp ascending in the reporting time zone.
func (s *URLService) Stats(ctx context.Context, rawURL string) (*entity.StatsReport, error) {
	const op = "service.URLService.Stats"

	originalURL := normalizeURL(rawURL)
	if originalURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyURL)
	}

	mappings, err := s.mappings.FindByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to find mappings: %w", op, err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrURLNotFound)
	}

	ids := make([]int64, 0, len(mappings))
	codes := make([]string, 0, len(mappings))
	codeByID := make(map[int64]string, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.ID)
		codes = append(codes, m.ShortCode)
		codeByID[m.ID] = m.ShortCode
	}

	visits, err := s.visits.ListByMappingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list visits: %w", op, err)
	}

	records := make([]entity.VisitRecord, 0, len(visits))
	for _, v := range visits {
		records = append(records, entity.VisitRecord{
			ShortCode:  codeByID[v.URLMappingID],
			IPAddress:  v.IPAddress,
			Count:      v.Count,
			RecordedAt: v.RecordedAt.In(s.opts.ReportingLocation),
		})
	}

	total, err := s.totalVisits(ctx, mappings, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &entity.StatsReport{
		OriginalURL: originalURL,
		ShortCodes:  codes,
		TotalVisits: total,
		Visits:      records,
	}, nil
}

func (s *URLService) totalVisits(ctx context.Context, mappings []*entity.URLMapping, ids []int64) (int64, error) {
	switch s.opts.CountMode {
	case entity.CountModeVisitRows:
		return s.visits.TotalByMappingIDs(ctx, ids)
	case entity.CountModePerOriginalURL:
		// Every alias carries the shared total; the oldest mapping has
		// seen all visits since the URL was first shortened.
		return mappings[0].VisitCount, nil
	default:
		var total int64
		for _, m := range mappings {
			total += m.VisitCount
		}
		return total, nil
	}
}

// Reset bulk-clears both stores after checking the admin key. The clear
// is a single transaction: on failure both stores are left unchanged.
func (s *URLService) Reset(ctx context.Context, key string) error {
	const op = "service.URLService.Reset"

	if subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.MasterKey)) != 1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidKey)
	}

	if err := s.resetter.ResetAll(ctx); err != nil {
		return fmt.Errorf("%s: failed to reset stores: %w", op, err)
	}

	s.cacheFlush(ctx)
	metrics.RecordReset()

	return nil
}

// Cache access is best-effort: failures are logged and the store remains
// the source of truth.

func (s *URLService) cacheGet(ctx context.Context, shortCode string) *entity.URLMapping {
	if s.cache == nil {
		return nil
	}

	m, err := s.cache.Get(ctx, shortCode)
	if err != nil {
		s.logger.Warn("mapping cache get failed", slog.Any("err", err))
		return nil
	}

	return m
}

func (s *URLService) cacheSet(ctx context.Context, m *entity.URLMapping) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.Warn("mapping cache set failed", slog.Any("err", err))
	}
}

func (s *URLService) cacheFlush(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("mapping cache flush failed", slog.Any("err", err))
	}
}
