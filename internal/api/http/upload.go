package http

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shortstat/shortstat/internal/upload"
	"github.com/shortstat/shortstat/pkg/response"
)

// maxUploadSize bounds the in-memory part of multipart parsing.
const maxUploadSize = 32 << 20

func keyMatches(key, want string) bool {
	return subtle.ConstantTimeCompare([]byte(key), []byte(want)) == 1
}

type uploadResponse struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

func handleUpload(uploads UploadStore, masterKey string) http.HandlerFunc {
	const op = "api.http.handleUpload"
	const successMsg = "The file has been uploaded successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if !keyMatches(r.FormValue("key"), masterKey) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.InvalidKeyResponse)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorResponse("Validation Error", "No file was submitted."))
			return
		}
		defer file.Close()

		stored, err := uploads.Save(header.Filename, file)
		if err != nil {
			switch {
			case errors.Is(err, upload.ErrEmptyFile):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Validation Error", "No file was submitted."))
			case errors.Is(err, upload.ErrExtensionNotAllowed):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Validation Error", "The file type is not allowed."))
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, uploadResponse{
			FileName: stored,
			URL:      "/uploads/" + stored,
		}))
	}
}

func handleServeUpload(uploads UploadStore) http.HandlerFunc {
	const op = "api.http.handleServeUpload"

	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		path, err := uploads.Path(name)
		if err != nil {
			if errors.Is(err, upload.ErrFileNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.ServeFile(w, r, path)
	}
}

func handleFindUpload(uploads UploadStore) http.HandlerFunc {
	const op = "api.http.handleFindUpload"
	const successMsg = "The file was found."

	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		stored, err := uploads.Find(name)
		if err != nil {
			if errors.Is(err, upload.ErrFileNotFound) {
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
		render.JSON(w, r, response.SuccessResponse(successMsg, uploadResponse{
			FileName: stored,
			URL:      "/uploads/" + stored,
		}))
	}
}

func handleCleanUploads(uploads UploadStore, cleanKey string, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCleanUploads"

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

		if !keyMatches(req.Key, cleanKey) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.InvalidKeyResponse)
			return
		}

		removed, err := uploads.Purge()
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(fmt.Sprintf("Removed %d uploaded files.", removed)))
	}
}
