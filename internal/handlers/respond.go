package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shroomify/server/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// readImageField pulls the uploaded image out of a multipart request.
func readImageField(r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil || len(content) == 0 {
		return nil, false
	}
	return content, true
}
