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
	"fmt"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// Endpoints contains all API endpoint patterns.
type Endpoints struct{}

// NewEndpoints creates a new Endpoints instance.
func NewEndpoints() *Endpoints {
	return &Endpoints{}
}

// Authentication endpoints.
func (e *Endpoints) AccessInfo() string {
	return "/access_info"
}

func (e *Endpoints) Token() string {
	return "/token"
}

func (e *Endpoints) User() string {
	return "/user"
}

// Job endpoints.
func (e *Endpoints) Jobs() string {
	return "/jobs"
}

func (e *Endpoints) Job(jobID string) (string, error) {
	param, err := runtime.StyleParamWithLocation("simple", false, "id", runtime.ParamLocationPath, jobID)
	if err != nil {
		return "", fmt.Errorf("styling job id: %w", err)
	}

	return "/jobs/" + param, nil
}

// File endpoints.  Remote paths are hierarchical, each segment is escaped
// on its own so separators survive.
func (e *Endpoints) Files(prefix string) string {
	if prefix == "" {
		return "/files/"
	}

	return "/files/" + escapePath(prefix)
}

func (e *Endpoints) FileURL(remotePath string) string {
	return "/files/" + escapePath(strings.TrimSuffix(remotePath, "/")) + "/url"
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")

	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}

	return strings.Join(segments, "/")
}
