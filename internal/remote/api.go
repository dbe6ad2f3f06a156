package remote

import (
	"encoding/json"
	"fmt"
)

// apiResponse models the envelope every registration service endpoint returns.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type countData struct {
	Count int `json:"count"`
}

// APIError is a non-zero application code returned by the service.
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API returned non-zero application code %d: %s", e.Path, e.Code, e.Message)
}
