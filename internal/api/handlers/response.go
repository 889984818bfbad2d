// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements the HTTP handlers behind the /api/v1
// routes. Every response uses the same envelope: {data} on success,
// {error:{code,message,details}} on failure, plus a timestamp.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo carries a machine-readable code alongside the message.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo is response metadata.
type MetaInfo struct {
	Timestamp time.Time `json:"timestamp"`
}

// Error codes clients can switch on.
const (
	ErrNotFound      = "NOT_FOUND"
	ErrBadRequest    = "BAD_REQUEST"
	ErrInternalError = "INTERNAL_ERROR"
	ErrConflict      = "CONFLICT"
	ErrNotSupported  = "NOT_SUPPORTED"
	ErrSpawnFailed   = "SPAWN_FAILED"
	ErrMalformed     = "MALFORMED_TRANSCRIPT"
)

func writeEnvelope(w http.ResponseWriter, status int, resp Response) {
	resp.Meta = &MetaInfo{Timestamp: time.Now()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, Response{Data: data})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// WriteErrorWithDetails writes an error envelope with structured
// details, e.g. the path and line of a malformed transcript.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeEnvelope(w, status, Response{Error: &ErrorInfo{Code: code, Message: message, Details: details}})
}
