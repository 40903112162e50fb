package models

import "time"

// StartFlowRequest opens a verification screen for Email.
type StartFlowRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// DigitRequest is one keystroke into a code cell. An empty Value clears the cell.
type DigitRequest struct {
	Index *int   `json:"index" binding:"required"`
	Value string `json:"value"`
}

type BackspaceRequest struct {
	Index *int `json:"index" binding:"required"`
}

// VerificationAttempt is one recorded outcome of a code screen.
type VerificationAttempt struct {
	ID      int64     `json:"id"`
	FlowID  string    `json:"flow_id"`
	Email   string    `json:"email"`
	Purpose string    `json:"purpose"`
	Event   string    `json:"event"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}
