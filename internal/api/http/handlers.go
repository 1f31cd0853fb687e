package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/repository"
	"github.com/shortstat/shortstat/internal/service"
	"github.com/shortstat/shortstat/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type urlRequest struct {
	URL string `json:"url" validate:"required"`
}

type urlResponse struct {
	ID         int64     `json:"id"`
	ShortCode  string    `json:"short_code"`
	URL        string    `json:"url"`
	VisitCount int64     `json:"visit_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toURLResponse(m *entity.URLMapping) urlResponse {
	return urlResponse{
		ID:         m.ID,
		ShortCode:  m.ShortCode,
		URL:        m.OriginalURL,
		VisitCount: m.VisitCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type statsRequest struct {
	OriginalURL string `json:"original_url" validate:"required"`
}

type visitResponse struct {
	ShortCode  string    `json:"short_code"`
	IPAddress  string    `json:"ip_address"`
	Count      int64     `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
}

type statsResponse struct {
	OriginalURL string          `json:"original_url"`
	ShortCodes  []string        `json:"short_codes"`
	TotalVisits int64           `json:"total_visits"`
	Visits      []visitResponse `json:"visits"`
}

func toStatsResponse(report *entity.StatsReport) statsResponse {
	visits := make([]visitResponse, 0, len(report.Visits))
	for _, v := range report.Visits {
		visits = append(visits, visitResponse{
			ShortCode:  v.ShortCode,
			IPAddress:  v.IPAddress,
			Count:      v.Count,
			RecordedAt: v.RecordedAt,
		})
	}

	return statsResponse{
		OriginalURL: report.OriginalURL,
		ShortCodes:  report.ShortCodes,
		TotalVisits: report.TotalVisits,
		Visits:      visits,
	}
}

type keyRequest struct {
	Key string `json:"key" validate:"required"`
}

// clientIP returns the visitor address with the port stripped. RealIP
// middleware has already rewritten RemoteAddr for proxied requests.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// redirectTarget prepends a scheme when the stored URL carries none, so
// the redirect leaves the service instead of resolving relatively.
func redirectTarget(originalURL string) string {
	if strings.Contains(originalURL, "://") {
		return originalURL
	}
	return "http://" + originalURL
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		m, err := svc.Resolve(r.Context(), shortCode, clientIP(r), time.Now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, redirectTarget(m.OriginalURL), http.StatusFound)
	}
}

func handleShorten(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShorten"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req urlRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		m, err := svc.Shorten(r.Context(), req.URL)
		if err != nil {
			if errors.Is(err, service.ErrEmptyURL) || errors.Is(err, service.ErrInvalidURL) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Validation Error", "The submitted URL is not valid."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(m)))
	}
}

func handleLookup(svc URLService) http.HandlerFunc {
	const op = "api.http.handleLookup"
	const successMsg = "The short code was successfully resolved."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		m, err := svc.Lookup(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, repository.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(m)))
	}
}

const qrCodeSize = 256

func handleQRCode(svc URLService) http.HandlerFunc {
	const op = "api.http.handleQRCode"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		if _, err := svc.Lookup(r.Context(), shortCode); err != nil {
			if errors.Is(err, repository.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		shortURL := fmt.Sprintf("%s://%s/%s", scheme, r.Host, shortCode)

		png, err := qrcode.Encode(shortURL, qrcode.Medium, qrCodeSize)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png) //nolint:errcheck // response already committed
	}
}

func handleStats(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req statsRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		report, err := svc.Stats(r.Context(), req.OriginalURL)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmptyURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Validation Error", "The submitted URL is not valid."))
			case errors.Is(err, repository.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toStatsResponse(report)))
	}
}

func handleReset(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleReset"
	const successMsg = "All mappings and visits have been deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		if err := svc.Reset(r.Context(), req.Key); err != nil {
			if errors.Is(err, service.ErrInvalidKey) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.InvalidKeyResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}
