// Package dto holds request and response bodies of the HTTP API.
package dto

import "encoding/json"

// MangoRequest is the body of POST /mangos and PATCH /mangos/{id}.
// Mango stays raw so the serializer can report field errors itself.
type MangoRequest struct {
	Mango json.RawMessage `json:"mango"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
