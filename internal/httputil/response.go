// Package httputil provides the JSON and CSV response helpers shared by the
// API handlers.
package httputil

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a successful JSON response (200 OK).
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes an error envelope with the given status code.
// Every error response has the shape {"status":"error","message":...} so
// clients can handle failures uniformly.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// MethodNotAllowed writes a 405 Method Not Allowed response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 Bad Request response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// InternalServerError writes a 500 Internal Server Error response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// WriteCSV streams a CSV attachment with the given filename. The write
// callback receives a ready csv.Writer; WriteCSV flushes it afterwards and
// logs rather than re-headers on failure, since the status line is already
// out.
func WriteCSV(w http.ResponseWriter, filename string, write func(cw *csv.Writer) error) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	cw := csv.NewWriter(w)
	if err := write(cw); err != nil {
		log.Printf("failed to write csv response: %v", err)
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("failed to flush csv response: %v", err)
	}
}
