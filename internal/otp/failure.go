package otp

import (
	"fmt"

	"recipebox/internal/api"
)

// Reason is the user-facing failure category of a verify or resend attempt.
type Reason string

const (
	ReasonIncomplete  Reason = "incomplete"
	ReasonInvalidCode Reason = "invalid_code"
	ReasonExpired     Reason = "expired"
	ReasonNotFound    Reason = "not_found"
	ReasonRateLimited Reason = "rate_limited"
	ReasonNetwork     Reason = "network"
	ReasonUnknown     Reason = "unknown"
)

// Presentation says where a screen shows a failure: under the code cells or
// as an alert.
type Presentation string

const (
	PresentationField Presentation = "field"
	PresentationAlert Presentation = "alert"
)

// Failure is an API or validation error translated for a screen.
type Failure struct {
	Reason       Reason       `json:"reason"`
	Presentation Presentation `json:"presentation"`
	Message      string       `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

var failures = map[Reason]Failure{
	ReasonIncomplete: {
		Reason: ReasonIncomplete, Presentation: PresentationField,
		Message: fmt.Sprintf("Enter all %d digits.", CodeLength),
	},
	ReasonInvalidCode: {
		Reason: ReasonInvalidCode, Presentation: PresentationField,
		Message: "That code is incorrect. Check your email and try again.",
	},
	ReasonExpired: {
		Reason: ReasonExpired, Presentation: PresentationField,
		Message: "This code has expired. Request a new one.",
	},
	ReasonNotFound: {
		Reason: ReasonNotFound, Presentation: PresentationField,
		Message: "We couldn't find a pending code for this email.",
	},
	ReasonRateLimited: {
		Reason: ReasonRateLimited, Presentation: PresentationAlert,
		Message: "Too many requests. Please wait a moment and try again.",
	},
	ReasonNetwork: {
		Reason: ReasonNetwork, Presentation: PresentationAlert,
		Message: "Can't reach the server. Check your connection and try again.",
	},
	ReasonUnknown: {
		Reason: ReasonUnknown, Presentation: PresentationAlert,
		Message: "Something went wrong. Please try again.",
	},
}

// FailureFor returns the canned failure for r.
func FailureFor(r Reason) Failure {
	if f, ok := failures[r]; ok {
		return f
	}
	return failures[ReasonUnknown]
}

// Translate maps an error from the auth API onto the screen taxonomy.
// Screens only ever see the result, never the raw error.
func Translate(err error) Failure {
	switch api.CategoryOf(err) {
	case api.CategoryInvalidCode, api.CategoryValidation:
		return FailureFor(ReasonInvalidCode)
	case api.CategoryExpired:
		return FailureFor(ReasonExpired)
	case api.CategoryNotFound:
		return FailureFor(ReasonNotFound)
	case api.CategoryRateLimited:
		return FailureFor(ReasonRateLimited)
	case api.CategoryNetwork:
		return FailureFor(ReasonNetwork)
	}
	return FailureFor(ReasonUnknown)
}
