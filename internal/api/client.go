// Package api uploads finished recordings to the replay server.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dronelab/swarmsim/pkg/core"
)

const (
	healthPath    = "/healthcheck"
	recordingPath = "/api/v1/recordings"
	apiKeyHeader  = "X-API-Key"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Code, e.Body)
}

// Client talks to the replay server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. The key is sent with every request.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck reports whether the server is up.
func (c *Client) Healthcheck() error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	return c.do("healthcheck", req)
}

// Upload streams the recording at filePath with its metadata as a
// multipart form: a JSON "metadata" part followed by the "file" part.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, filepath.Base(filePath), meta, f))
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+recordingPath, pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do("upload", req)
}

func writeForm(form *multipart.Writer, name string, meta core.UploadMetadata, file io.Reader) error {
	m, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := form.WriteField("metadata", string(m)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying recording: %w", err)
	}
	return form.Close()
}

func (c *Client) do(op string, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
