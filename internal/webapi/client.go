// Package webapi provides the uniform HTTP-call wrapper used by every
// external-API function in FuncBot.
//
// Transport failures, timeouts, non-2xx responses, and decode faults are all
// normalized into the models.Envelope value; callers never branch on Go
// errors for expected failure modes.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/FuncStore/FuncBot/internal/models"
)

// Error categories surfaced to users. Remote 403s get a distinct category
// from generic non-200 responses.
const (
	ErrConnectionFailed = "could not connect to the site"
	ErrTimedOut         = "the request timed out"
	ErrAccessDenied     = "access to the site is denied"
	ErrInternal         = "server-side error, a fix is in progress"
)

// DefaultTimeout bounds a call when the request gives none.
const DefaultTimeout = 20 * time.Second

// maxLoggedBody caps the diagnostic body excerpt in error logs.
const maxLoggedBody = 500

// Request describes one external call.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
	Decode  models.DecodeMode
	Timeout time.Duration
}

// Client performs timeout-bounded HTTP calls with no automatic retries.
// Callers that need multi-step sequences chain calls manually and propagate
// the first failing envelope unchanged.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a call wrapper over the given http.Client. A nil client
// uses http.DefaultClient semantics with per-call timeouts.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Call performs the request and returns its result as an envelope. Success
// paths do not log; every non-success path emits a structured record with
// method, status, URL, and a truncated diagnostic message.
func (c *Client) Call(ctx context.Context, req Request) models.Envelope {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	decode := req.Decode
	if decode == "" {
		decode = models.DecodeJSON
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, method, req.URL, bodyReader)
	if err != nil {
		logCallError(method, 0, req.URL, err.Error())
		return models.ErrorEnvelope(ErrConnectionFailed, 0, req.URL, method)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		category := ErrConnectionFailed
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			category = ErrTimedOut
		}
		logCallError(method, 0, req.URL, err.Error())
		return models.ErrorEnvelope(category, 0, req.URL, method)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		logCallError(method, resp.StatusCode, req.URL, safeReadBody(resp))
		return models.ErrorEnvelope(ErrAccessDenied, resp.StatusCode, req.URL, method)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logCallError(method, resp.StatusCode, req.URL, safeReadBody(resp))
		return models.ErrorEnvelope(fmt.Sprintf("the site returned error %d", resp.StatusCode), resp.StatusCode, req.URL, method)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logCallError(method, resp.StatusCode, req.URL, err.Error())
		return models.ErrorEnvelope(ErrConnectionFailed, 0, req.URL, method)
	}

	switch decode {
	case models.DecodeJSON:
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			logCallError(method, resp.StatusCode, req.URL, err.Error())
			return models.ErrorEnvelope(ErrInternal, 0, req.URL, method)
		}
		return models.SuccessEnvelope(payload, resp.StatusCode, req.URL, method)
	case models.DecodeText:
		return models.SuccessEnvelope(string(raw), resp.StatusCode, req.URL, method)
	default:
		return models.SuccessEnvelope(raw, resp.StatusCode, req.URL, method)
	}
}

// Get performs a JSON GET with the default timeout.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) models.Envelope {
	return c.Call(ctx, Request{URL: url, Headers: headers})
}

// PostJSON marshals body and performs a JSON POST.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) models.Envelope {
	raw, err := json.Marshal(body)
	if err != nil {
		logCallError(http.MethodPost, 0, url, err.Error())
		return models.ErrorEnvelope(ErrInternal, 0, url, http.MethodPost)
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	headers["Content-Type"] = "application/json"
	return c.Call(ctx, Request{Method: http.MethodPost, URL: url, Body: raw, Headers: headers})
}

// GetInto performs a GET and unmarshals the JSON response body into target.
// On success the returned envelope's Payload is target; on any failure the
// failing envelope is returned unchanged and target is untouched.
func (c *Client) GetInto(ctx context.Context, url string, headers map[string]string, target any) models.Envelope {
	env := c.Call(ctx, Request{URL: url, Headers: headers, Decode: models.DecodeBytes})
	if !env.OK() {
		return env
	}
	if err := json.Unmarshal(env.Bytes(), target); err != nil {
		logCallError(http.MethodGet, env.Status, url, err.Error())
		return models.ErrorEnvelope(ErrInternal, 0, url, http.MethodGet)
	}
	env.Payload = target
	return env
}

// safeReadBody reads a bounded excerpt of a response body for diagnostics.
func safeReadBody(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		return "<no body>"
	}
	return string(raw)
}

func logCallError(method string, status int, url, detail string) {
	if len(detail) > maxLoggedBody {
		detail = detail[:maxLoggedBody]
	}
	slog.Error("External call failed", "method", method, "status", status, "url", url, "detail", detail)
}
