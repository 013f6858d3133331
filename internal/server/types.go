package server

import "autopull/internal/history"

// PullResponse is returned after every pull of a key succeeded.
type PullResponse struct {
	Output string `json:"output"`
}

// ScriptResponse is returned once every script of a key was launched.
type ScriptResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"error-message"`
}

// HealthResponse describes the running configuration.
type HealthResponse struct {
	Status       string   `json:"status"`
	Mode         string   `json:"mode"`
	Namespace    string   `json:"namespace"`
	Keys         []string `json:"keys"`
	MappingCount int      `json:"mapping_count"`
}

// StatusResponse lists the latest run of every key that has been triggered.
type StatusResponse struct {
	Keys map[string]*history.RunRecord `json:"keys"`
}
