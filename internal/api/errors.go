package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every failed request.
type Error struct {
	Detail string `json:"detail"`
}

// Message is the body of a mutation that returns no resource.
type Message struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeMessage writes a {"message"} response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Message{Message: message})
}

// writeError writes a {"detail"} error response.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, Error{Detail: detail})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, detail)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusNotFound, detail)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusConflict, detail)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusUnauthorized, detail)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusForbidden, detail)
}

// writeInternalError logs err and writes a 500 carrying its message.
func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"correlation_id", correlationID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	return json.NewDecoder(r.Body).Decode(v)
}
