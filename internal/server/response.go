package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// Metadata describes the converted upload.
type Metadata struct {
	FileName     string    `json:"fileName"`
	FileSize     string    `json:"fileSize"`
	CreationDate time.Time `json:"creationDate"`
}

// Extraction is the success response body.
type Extraction struct {
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
}

// APIError is the error response body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIError{Code: status, Message: message})
}
