package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	panic("204 responses must not be read")
}

func TestNormalize_Success(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string // empty means nil result
	}{
		{name: "envelope with list", status: 200, body: `{"success":true,"data":[1,2]}`, want: `[1,2]`},
		{name: "envelope with object", status: 201, body: `{"success": true, "data": {"id": "a"}}`, want: `{"id":"a"}`},
		{name: "envelope with null data", status: 200, body: `{"success":true,"data":null}`},
		{name: "success false is not unwrapped", status: 200, body: `{"success":false,"data":1}`, want: `{"success":false,"data":1}`},
		{name: "success without data is not unwrapped", status: 200, body: `{"success":true}`, want: `{"success":true}`},
		{name: "success as string is not unwrapped", status: 200, body: `{"success":"true","data":1}`, want: `{"success":"true","data":1}`},
		{name: "bare list", status: 200, body: `[{"id":1}]`, want: `[{"id":1}]`},
		{name: "bare scalar", status: 200, body: `42`, want: `42`},
		{name: "empty body", status: 200, body: ``},
		{name: "whitespace body", status: 202, body: "  \n"},
		{name: "null body", status: 200, body: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := normalize(response(tt.status, tt.body))
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, data)
				return
			}
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestNormalize_NoContentSkipsBody(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(failingReader{})}
	data, err := normalize(resp)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestNormalize_InvalidJSONOnSuccess(t *testing.T) {
	_, err := normalize(response(http.StatusOK, `<html>oops</html>`))
	require.ErrorIs(t, err, ErrInvalidBody)
	assert.False(t, Retryable(err))
}

func TestNormalize_ErrorMessagePriority(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantData    bool
	}{
		{
			name:        "detail wins over everything",
			status:      http.StatusBadRequest,
			body:        `{"detail":"d","message":"m","error":{"message":"e"}}`,
			wantMessage: "d",
			wantData:    true,
		},
		{
			name:        "message wins over nested error",
			status:      http.StatusConflict,
			body:        `{"message":"m","error":{"message":"e"}}`,
			wantMessage: "m",
			wantData:    true,
		},
		{
			name:        "nested error message",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":{"message":"e"}}`,
			wantMessage: "e",
			wantData:    true,
		},
		{
			name:        "non-string detail is skipped",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":[{"loc":["body","date"],"msg":"invalid"}],"message":"validation failed"}`,
			wantMessage: "validation failed",
			wantData:    true,
		},
		{
			name:        "empty strings fall through to status text",
			status:      http.StatusForbidden,
			body:        `{"detail":"","message":""}`,
			wantMessage: "Forbidden",
			wantData:    true,
		},
		{
			name:        "unparseable body",
			status:      http.StatusBadGateway,
			body:        `upstream connect error`,
			wantMessage: "Bad Gateway",
		},
		{
			name:        "unknown status without body",
			status:      599,
			body:        ``,
			wantMessage: "request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalize(response(tt.status, tt.body))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			if tt.wantData {
				assert.JSONEq(t, tt.body, string(apiErr.Data))
			} else {
				assert.Nil(t, apiErr.Data)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "slot taken (status 409)", (&APIError{Message: "slot taken", Status: 409}).Error())

	netErr := networkError(io.ErrUnexpectedEOF)
	assert.Equal(t, "network request failed: unexpected EOF", netErr.Error())
	assert.ErrorIs(t, netErr, ErrNetwork)
	assert.ErrorIs(t, netErr, io.ErrUnexpectedEOF)

	timeout := timeoutError(io.EOF)
	assert.Equal(t, "request timed out (status 408)", timeout.Error())
	assert.ErrorIs(t, timeout, ErrTimeout)
}

func TestDecode(t *testing.T) {
	type journal struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	got, err := Decode[[]journal](json.RawMessage(`[{"id":"1","title":"Morning"}]`))
	require.NoError(t, err)
	assert.Equal(t, []journal{{ID: "1", Title: "Morning"}}, got)

	empty, err := Decode[*journal](nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Decode[journal](json.RawMessage(`[1]`))
	require.Error(t, err)
}

func TestParseToken(t *testing.T) {
	tok, err := ParseToken(json.RawMessage(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":60}`))
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.False(t, tok.Expiry.IsZero())

	tok, err = ParseToken(json.RawMessage(`{"accessToken":"a2","refreshToken":"r2"}`))
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)

	_, err = ParseToken(json.RawMessage(`{"refresh_token":"r"}`))
	require.ErrorContains(t, err, "access_token is empty")

	_, err = ParseToken(json.RawMessage(`{"access_token":"a","token_type":"Basic"}`))
	require.ErrorContains(t, err, "unexpected token_type")
}
