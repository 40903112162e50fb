package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category classifies a failed call to the recipe API.
type Category string

const (
	CategoryUnknown      Category = "unknown"
	CategoryInvalidCode  Category = "invalid_code"
	CategoryExpired      Category = "expired"
	CategoryNotFound     Category = "not_found"
	CategoryRateLimited  Category = "rate_limited"
	CategoryNetwork      Category = "network"
	CategoryInvalidToken Category = "invalid_token"
	CategoryUnauthorized Category = "unauthorized"
	CategoryUnverified   Category = "email_not_verified"
	CategoryConflict     Category = "conflict"
	CategoryValidation   Category = "validation"
	CategoryServer       Category = "server"
)

// Error is returned by every Client method that reached a decision about
// the request. Transport failures are wrapped in Err with CategoryNetwork.
type Error struct {
	Category Category
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Category, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("api %s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CategoryOf reports the category of err. Context cancellation and deadline
// errors count as network failures.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryNetwork
	}
	return CategoryUnknown
}

// errorBody is the error envelope the backend answers with.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// badRequestAs decides what a 400/422 means for one endpoint.
type badRequestAs Category

func classify(status int, body errorBody, onBadRequest badRequestAs) Category {
	switch strings.ToLower(strings.TrimSpace(body.Code)) {
	case string(CategoryInvalidCode), "invalid_otp", "otp_invalid":
		return CategoryInvalidCode
	case string(CategoryExpired), "otp_expired", "code_expired":
		return CategoryExpired
	case string(CategoryNotFound), "user_not_found":
		return CategoryNotFound
	case string(CategoryRateLimited), "too_many_requests":
		return CategoryRateLimited
	case string(CategoryInvalidToken), "token_invalid", "token_expired":
		return CategoryInvalidToken
	case string(CategoryUnverified):
		return CategoryUnverified
	}

	switch {
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusGone:
		return CategoryExpired
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusConflict:
		return CategoryConflict
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		if strings.Contains(strings.ToLower(body.text()), "verif") {
			return CategoryUnverified
		}
		return CategoryUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(body.text()), "expired") {
			if Category(onBadRequest) == CategoryInvalidToken {
				return CategoryInvalidToken
			}
			return CategoryExpired
		}
		return Category(onBadRequest)
	case status >= 500:
		return CategoryServer
	}
	return CategoryUnknown
}
