package api

import (
	"encoding/json"
	"net/http"
)

// ErrorKind classifies API failures so callers can choose between
// re-prompting for credentials, showing a validation message, or retrying.
type ErrorKind string

const (
	// KindInvalidCredentials covers bad login/expired token responses.
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindValidation covers rejected input (signup conflicts, bad fields).
	KindValidation ErrorKind = "validation"
	// KindNotFound covers lookups that matched nothing.
	KindNotFound ErrorKind = "not_found"
	// KindNetwork covers transport failures before any server response.
	KindNetwork ErrorKind = "network"
	// KindServer covers 5xx and anything else unexpected.
	KindServer ErrorKind = "server"
)

// Error is a classified API failure. Message is the server's own message
// when one was returned, suitable for direct display.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func errorFromResponse(status int, body []byte) *Error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	kind := KindServer
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindInvalidCredentials
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 400 && status < 500:
		kind = KindValidation
	}
	return &Error{Kind: kind, Status: status, Message: payload.Message}
}
