package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string, expiry *time.Duration) (*entity.ShortenResult, error)
	ShortenBatch(ctx context.Context, originalURLs []string, expiry *time.Duration) ([]entity.BatchResult, error)
	ActiveStats(ctx context.Context) (*entity.ActiveStats, error)
	RecentURLs(ctx context.Context) ([]*entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

// decode reads and validates the JSON body into v. It writes the 400
// response itself and reports whether the handler may continue.
func (h *urlHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, serverErrorResponse)
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.useCase.ShortenURL(r.Context(), req.Link, req.Expiry.duration())
	if err != nil {
		serverError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Action == entity.ActionCreated {
		status = http.StatusCreated
	}

	render.Status(r, status)
	render.JSON(w, r, toShortenResponse(res))
}

func (h *urlHandler) shortenBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest

	if !h.decode(w, r, &req) {
		return
	}

	results, err := h.useCase.ShortenBatch(r.Context(), req.Links, req.Expiry.duration())
	if err != nil {
		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toBatchResponse(results))
}

func (h *urlHandler) getActiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.useCase.ActiveStats(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toActiveStatsResponse(stats))
}

func (h *urlHandler) getRecentURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.RecentURLs(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toRecentURLsResponse(urls))
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, tooManyRequestsResponse)
}

func rateLimitError(w http.ResponseWriter, r *http.Request, err error) {
	serverError(w, r, fmt.Errorf("rate limiter: %w", err))
}
