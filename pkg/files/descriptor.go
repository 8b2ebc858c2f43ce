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

package files

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrInvalidDescriptor is returned when the API hands out a transfer
	// descriptor that cannot be replayed.
	ErrInvalidDescriptor = errors.New("invalid transfer descriptor")
)

//go:embed descriptor.schema.json
var descriptorSchema []byte

const descriptorSchemaURL = "descriptor.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(descriptorSchemaURL, bytes.NewReader(descriptorSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(descriptorSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return schema, nil
})

// Descriptor is a single use instruction describing how to perform one
// transfer against storage that may not be the API host.
type Descriptor struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	// Data carries form fields, e.g. for presigned POST uploads.
	Data map[string]string `json:"data,omitempty"`
	// Params are added to the URL's query.
	Params map[string]string `json:"params,omitempty"`
}

// ParseDescriptor validates and decodes a descriptor.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var payload any

	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	var descriptor Descriptor

	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	return &descriptor, nil
}

// NewRequest builds the request the descriptor describes.  The only header
// that may be added is the body's content type, when the descriptor does
// not already name one.
func (d *Descriptor) NewRequest(ctx context.Context, body io.Reader, contentType string) (*http.Request, error) {
	target, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	if len(d.Params) > 0 {
		query := target.Query()

		for k, v := range d.Params {
			query.Set(k, v)
		}

		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(d.Method), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating transfer request: %w", err)
	}

	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}
