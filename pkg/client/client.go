/*
Copyright 2026 the DECODE Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/decode-cloud/e2e/pkg/constants"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Options configure a client.
type Options struct {
	// BaseURL is the user facing API.
	BaseURL string
	// Timeout bounds each request.
	Timeout time.Duration
	// LogRequests logs every request and its status.
	LogRequests bool
	// LogResponses logs response bodies.
	LogResponses bool
	// HTTPClient overrides the transport, the timeout is then ignored.
	HTTPClient *http.Client
}

// Client is a minimal HTTP client for the job API.  It adds the bearer token
// and W3C trace context to API requests and turns every non-2xx response
// into an *HTTPError.  There are no retries.
type Client struct {
	baseURL   string
	client    *http.Client
	authToken string
	options   Options
	endpoints *Endpoints
}

// New returns a new client.
func New(options Options) *Client {
	client := options.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: options.Timeout,
		}
	}

	return &Client{
		baseURL:   strings.TrimSuffix(options.BaseURL, "/"),
		client:    client,
		options:   options,
		endpoints: NewEndpoints(),
	}
}

// SetAuthToken sets the bearer token attached to API requests.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoints returns the endpoint catalogue.
func (c *Client) Endpoints() *Endpoints {
	return c.endpoints
}

// Request is an API request relative to the base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
	// Anonymous omits the bearer token.
	Anonymous bool
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// generateTraceID creates a new W3C trace ID.
func generateTraceID() string {
	id := make([]byte, 16)
	_, _ = rand.Read(id)

	return hex.EncodeToString(id)
}

// generateSpanID creates a new W3C span ID.
func generateSpanID() string {
	id := make([]byte, 8)
	_, _ = rand.Read(id)

	return hex.EncodeToString(id)
}

// createTraceParent creates a W3C traceparent header value.
func createTraceParent() string {
	return fmt.Sprintf("00-%s-%s-01", generateTraceID(), generateSpanID())
}

// extractTraceID extracts the trace ID from a traceparent header value.
func extractTraceID(traceParent string) string {
	parts := strings.Split(traceParent, "-")
	if len(parts) >= 2 {
		return parts[1]
	}

	return traceParent
}

// Do performs an API request.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	fullURL := c.baseURL + r.Path

	if len(r.Query) > 0 {
		fullURL += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, fullURL, r.Body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	traceParent := createTraceParent()
	req.Header.Set("Traceparent", traceParent)
	req.Header.Set("Tracestate", constants.TraceStateValue)
	req.Header.Set(constants.UserAgentHeader, constants.VersionString())

	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	if c.authToken != "" && !r.Anonymous {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.execute(ctx, req, traceParent)
}

// DoJSON performs an API request with an optional JSON body and decodes an
// optional JSON response.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	r := Request{
		Method: method,
		Path:   path,
	}

	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}

		r.Body = bytes.NewReader(body)
		r.ContentType = "application/json"
	}

	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("unmarshaling %s %s response: %w", method, path, err)
	}

	return nil
}

// Send executes a fully formed request exactly as given, no credentials or
// tracing headers are added.  This is used to replay transfer descriptors
// against third party storage.
func (c *Client) Send(ctx context.Context, req *http.Request) (*Response, error) {
	return c.execute(ctx, req.WithContext(ctx), "")
}

func (c *Client) execute(ctx context.Context, req *http.Request, traceParent string) (*Response, error) {
	log := log.FromContext(ctx).WithValues("method", req.Method, "url", req.URL.Redacted())

	if traceParent != "" {
		log = log.WithValues("traceparent", traceParent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		log.Error(err, "http request failed", "duration", duration)

		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error(err, "reading response body", "duration", duration, "status", resp.StatusCode)

		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.options.LogRequests {
		log.Info("request complete", "status", resp.StatusCode, "duration", duration)
	}

	if c.options.LogResponses && len(body) > 0 {
		log.Info("response body", "body", string(body))
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}

	if !success(resp.StatusCode) {
		httpErr := &HTTPError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}

		if traceParent != "" {
			httpErr.TraceID = extractTraceID(traceParent)
		}

		log.Info("unexpected status", "status", resp.StatusCode, "body", string(body), "traceID", httpErr.TraceID)

		return response, httpErr
	}

	return response, nil
}
