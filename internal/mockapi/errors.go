package mockapi

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope of the backend
type errorBody struct {
	Status string            `json:"_status"`
	Error  errorDetail       `json:"_error"`
	Issues map[string]string `json:"_issues,omitempty"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, status int, message string) {
	renderJSON(w, status, errorBody{
		Status: "ERR",
		Error:  errorDetail{Code: status, Message: message},
	})
}

func renderIssues(w http.ResponseWriter, message string, issues map[string]string) {
	renderJSON(w, http.StatusUnprocessableEntity, errorBody{
		Status: "ERR",
		Error:  errorDetail{Code: http.StatusUnprocessableEntity, Message: message},
		Issues: issues,
	})
}
