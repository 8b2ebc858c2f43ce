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
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned for any non-2xx response, from the API itself or
// from a storage target a transfer descriptor points at.
type HTTPError struct {
	// Method and URL identify the request.
	Method string
	URL    string
	// StatusCode is the response status.
	StatusCode int
	// Body is the raw response body.
	Body string
	// TraceID correlates the request with server side logs.
	TraceID string
}

func (e *HTTPError) Error() string {
	message := fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.URL, e.StatusCode)

	if e.Body != "" {
		message += ", body: " + e.Body
	}

	if e.TraceID != "" {
		message += " (trace ID: " + e.TraceID + ")"
	}

	return message
}

// IsStatus reports whether err is an HTTP error with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError

	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func success(code int) bool {
	return code >= 200 && code < 300
}
