package types

import "github.com/google/uuid"

// SuccessEnvelope wraps every JSON body except the CSV export.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error. Details is only set for codes whose
// metadata allows it, e.g. the failing saga step or invalid fields.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// DeletedPack is returned by POST /delete.
type DeletedPack struct {
	ID uuid.UUID `json:"id"`
}

// RemovedItems is returned by POST /remove-item. Removed is 0 when the
// association did not exist.
type RemovedItems struct {
	Removed int64 `json:"removed"`
}
