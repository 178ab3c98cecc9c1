// Package rest is a client for the Shadow backend's HTTP endpoints: room id
// availability, room creation, password checks, image upload and wake-up.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"
)

const maxResponseBytes = 1 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend REST API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		log:        logger.With().Str("component", "rest").Logger(),
	}
}

// ValidateID reports whether a room id is free to create.
func (c *Client) ValidateID(ctx context.Context, id string) (bool, error) {
	body, err := c.get(ctx, "/validateId", url.Values{"query": {id}})
	if err != nil {
		return false, err
	}
	return parseBool(body)
}

type createShadowRequest struct {
	ShadowID   string `json:"shadowId"`
	ShadowPass string `json:"shadowPass"`
}

// CreateShadow creates a password-protected room.
func (c *Client) CreateShadow(ctx context.Context, id, pass string) (bool, error) {
	payload, err := json.Marshal(createShadowRequest{ShadowID: id, ShadowPass: pass})
	if err != nil {
		return false, fmt.Errorf("marshal create request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/createShadow", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return false, err
	}
	return parseBool(body)
}

// CheckID reports whether a room exists.
func (c *Client) CheckID(ctx context.Context, id string) (bool, error) {
	body, err := c.get(ctx, "/checkId", url.Values{"id": {id}})
	if err != nil {
		return false, err
	}
	return parseBool(body)
}

// ValidatePass reports whether pass opens room id.
func (c *Client) ValidatePass(ctx context.Context, id, pass string) (bool, error) {
	body, err := c.get(ctx, "/validatePass", url.Values{"id": {id}, "pass": {pass}})
	if err != nil {
		return false, err
	}
	return parseBool(body)
}

// Activate pings the backend so a sleeping instance wakes up.
func (c *Client) Activate(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/activateServer", nil)
	if err != nil {
		return false, err
	}
	return parseBool(body)
}

// UploadImage sends an image as multipart field "file" and returns the
// opaque file reference the backend assigned to it.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/uploadedImage", nil, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	ref := parseString(body)
	if ref == "" {
		return "", fmt.Errorf("upload %s: empty file reference", filename)
	}
	return ref, nil
}

// ImageURL returns the download URL of an uploaded image reference.
func (c *Client) ImageURL(ref string) string {
	return c.BaseURL + "/images/" + url.PathEscape(ref)
}

func (c *Client) get(ctx context.Context, p string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, p, query, nil, "")
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	target := c.BaseURL + p
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, p, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, p, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", p).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("rest call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			Path:   p,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

// parseBool accepts a JSON boolean, a quoted or bare "true"/"false", or 0/1.
func parseBool(body []byte) (bool, error) {
	v, typ, _, err := jsonparser.Get(body)
	if err == nil {
		switch typ {
		case jsonparser.Boolean:
			return jsonparser.ParseBoolean(v)
		case jsonparser.Number:
			n, err := jsonparser.ParseInt(v)
			if err == nil {
				return n != 0, nil
			}
		case jsonparser.String:
			if b, err := strconv.ParseBool(string(v)); err == nil {
				return b, nil
			}
		case jsonparser.Null:
			return false, nil
		}
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(string(body))); err == nil {
		return b, nil
	}
	return false, fmt.Errorf("unexpected boolean response %q", truncate(body))
}

// parseString accepts a JSON string or a plain-text body.
func parseString(body []byte) string {
	v, typ, _, err := jsonparser.Get(body)
	if err == nil && typ == jsonparser.String {
		if s, err := jsonparser.ParseString(v); err == nil {
			return strings.TrimSpace(s)
		}
	}
	if err == nil && (typ == jsonparser.Object || typ == jsonparser.Array) {
		return ""
	}
	return strings.TrimSpace(string(body))
}

func truncate(b []byte) string {
	const n = 64
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
