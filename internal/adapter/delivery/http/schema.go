package http

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const statusError = "error"

// expiryParam is a caller-supplied time-to-live in milliseconds. It accepts a
// JSON number or a numeric string. Any other value decodes to "not set" so
// that a bad expiry falls back to the default instead of failing the request.
type expiryParam struct {
	d *time.Duration
}

func (p *expiryParam) UnmarshalJSON(data []byte) error {
	p.d = nil

	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	if d, ok := entity.ParseExpiry(s); ok {
		p.d = &d
	}

	return nil
}

func (p expiryParam) duration() *time.Duration {
	return p.d
}

type shortenRequest struct {
	Link   string      `json:"link" validate:"required,url"`
	Expiry expiryParam `json:"expiry"`
}

type shortenResponse struct {
	ShortCode string `json:"shortCode"`
	Message   string `json:"message"`
}

func messageForAction(action entity.Action) string {
	switch action {
	case entity.ActionCreated:
		return "URL shortened successfully"
	case entity.ActionRefreshed:
		return "Short code is still active, expiry refreshed"
	case entity.ActionRotated:
		return "Short code expired, a new one was generated"
	default:
		return "URL updated"
	}
}

func toShortenResponse(res *entity.ShortenResult) shortenResponse {
	return shortenResponse{
		ShortCode: res.URL.ShortCode,
		Message:   messageForAction(res.Action),
	}
}

type batchRequest struct {
	Links  []string    `json:"links" validate:"required,dive,required,url"`
	Expiry expiryParam `json:"expiry"`
}

type batchItemResponse struct {
	Link      string `json:"link"`
	ShortCode string `json:"shortCode"`
	Action    string `json:"action"`
}

func toBatchResponse(results []entity.BatchResult) []batchItemResponse {
	resp := make([]batchItemResponse, 0, len(results))

	for _, res := range results {
		resp = append(resp, batchItemResponse{
			Link:      res.OriginalURL,
			ShortCode: res.ShortCode,
			Action:    string(res.Action),
		})
	}

	return resp
}

type urlRecordResponse struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	Created     time.Time `json:"created"`
	Expiry      *string   `json:"expiry"`
}

func toURLRecordResponse(url *entity.URL) urlRecordResponse {
	resp := urlRecordResponse{
		ID:          url.ID,
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
		Created:     url.CreatedAt,
	}

	if url.Expiry != nil {
		expiry := entity.FormatExpiry(*url.Expiry)
		resp.Expiry = &expiry
	}

	return resp
}

type dateCountResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type activeStatsResponse struct {
	Total         int                 `json:"total"`
	Groups        []dateCountResponse `json:"groups"`
	ActiveRecords []urlRecordResponse `json:"activeRecords"`
}

func toActiveStatsResponse(stats *entity.ActiveStats) activeStatsResponse {
	resp := activeStatsResponse{
		Total:         stats.Total,
		Groups:        make([]dateCountResponse, 0, len(stats.Groups)),
		ActiveRecords: make([]urlRecordResponse, 0, len(stats.Records)),
	}

	for _, g := range stats.Groups {
		resp.Groups = append(resp.Groups, dateCountResponse{Date: g.Date, Count: g.Count})
	}
	for _, url := range stats.Records {
		resp.ActiveRecords = append(resp.ActiveRecords, toURLRecordResponse(url))
	}

	return resp
}

// recentURLResponse deliberately carries no id or expiry.
type recentURLResponse struct {
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
}

func toRecentURLsResponse(urls []*entity.URL) []recentURLResponse {
	resp := make([]recentURLResponse, 0, len(urls))

	for _, url := range urls {
		resp = append(resp, recentURLResponse{
			ShortCode:   url.ShortCode,
			OriginalURL: url.OriginalURL,
		})
	}

	return resp
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	tooManyRequestsResponse = errorResponse{
		Status:  statusError,
		Message: "too many requests",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

// getValidationErrors reports one entry per failed field. Fields inside a
// slice keep their index, e.g. "links[1]".
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
