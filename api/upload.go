package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// UploadFieldFile is the multipart field that carries the file.
const UploadFieldFile = "file"

// UploadFile references a local file to send as multipart form data.
type UploadFile struct {
	Path string
	// Name is the filename sent to the backend; defaults to the base of Path.
	Name     string
	MIMEType string
}

// Upload sends file and fields as multipart/form-data to endpoint.
//
// Uploads recover from an expired access token like any other call, but are
// never retried on timeouts, network failures or 5xx: re-sending a large body
// on a flaky connection is left to the caller.
func (c *Client) Upload(
	ctx context.Context,
	endpoint string,
	file UploadFile,
	fields map[string]string,
) (json.RawMessage, error) {
	if _, err := os.Stat(file.Path); err != nil {
		return nil, fmt.Errorf("failed to open upload file: %w", err)
	}

	refreshed := false
	for {
		data, sentToken, err := c.uploadOnce(ctx, endpoint, file, fields)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !IsUnauthorized(err) || refreshed {
			return nil, err
		}

		c.observer.OnUnauthorized(endpoint)
		if recoverErr := c.refresher.recover(ctx, sentToken, err); recoverErr != nil {
			c.observer.OnRefreshFailed(endpoint, recoverErr)
			return nil, recoverErr
		}
		c.observer.OnRefreshed(endpoint)
		refreshed = true
	}
}

func (c *Client) uploadOnce(
	ctx context.Context,
	endpoint string,
	file UploadFile,
	fields map[string]string,
) (json.RawMessage, string, error) {
	c.store.Load()
	accessToken := c.store.Credentials().AccessToken

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, accessToken, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Stream the body so large files are never held in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, f, file, fields))
	}()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		_ = pr.Close()
		return nil, accessToken, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	setBearer(req, accessToken)

	c.log.Debug().Str("endpoint", endpoint).Str("file", filepath.Base(file.Path)).Msg("uploading file")
	data, err := c.send(ctx, attemptCtx, req)
	// Unblocks the writer goroutine if the transport stopped reading early.
	_ = pr.Close()
	return data, accessToken, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeMultipart(mw *multipart.Writer, src io.Reader, file UploadFile, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return err
		}
	}

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="%s"; filename="%s"`,
		UploadFieldFile,
		quoteEscaper.Replace(name),
	))
	h.Set("Content-Type", mimeType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}
