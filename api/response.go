package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// errorMessagePaths lists, in priority order, where a human-readable message
// may live in an error body.
var errorMessagePaths = []string{"detail", "message", "error.message"}

// normalize turns a backend response into the call result. A nil
// RawMessage is the null result.
func normalize(resp *http.Response) (json.RawMessage, error) {
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return unwrapEnvelope(resp.StatusCode, body)
	}
	return nil, statusError(resp.StatusCode, body)
}

// unwrapEnvelope returns data from {"success": true, "data": ...} and the
// payload itself otherwise.
func unwrapEnvelope(status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, &APIError{
			Message: "response body is not valid JSON",
			Status:  status,
			Err:     ErrInvalidBody,
		}
	}

	payload := gjson.ParseBytes(body)
	if payload.IsObject() && payload.Get("success").Type == gjson.True {
		if data := payload.Get("data"); data.Exists() {
			return rawOrNil(data), nil
		}
	}
	return rawOrNil(payload), nil
}

func rawOrNil(r gjson.Result) json.RawMessage {
	if r.Type == gjson.Null {
		return nil
	}
	return json.RawMessage(r.Raw)
}

func statusError(status int, body []byte) *APIError {
	var data json.RawMessage
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && gjson.ValidBytes(trimmed) {
		data = json.RawMessage(trimmed)
	}
	return &APIError{
		Message: errorMessage(data, http.StatusText(status)),
		Status:  status,
		Data:    data,
	}
}

// errorMessage walks errorMessagePaths and falls back to statusText. Only
// non-empty string values count.
func errorMessage(data json.RawMessage, statusText string) string {
	if len(data) > 0 {
		for _, path := range errorMessagePaths {
			if r := gjson.GetBytes(data, path); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	if statusText == "" {
		return "request failed"
	}
	return statusText
}

// Decode unmarshals a call result into T. The null result decodes to T's
// zero value.
func Decode[T any](data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
