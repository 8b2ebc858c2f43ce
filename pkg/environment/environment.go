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

package environment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/decode-cloud/e2e/pkg/options"
)

var (
	// ErrConfiguration is raised for an invalid selection of environment
	// and modifiers.
	ErrConfiguration = errors.New("configuration error")

	// ErrGPUNotImplemented is raised when GPU execution is requested.
	ErrGPUNotImplemented = fmt.Errorf("%w: GPU tests are not implemented yet", ErrConfiguration)
)

// Name identifies a deployment.
type Name string

const (
	Local Name = "local"
	Dev   Name = "dev"
	Prod  Name = "prod"
)

// Job targets, the worker pool a submitted job runs on.
const (
	TargetCloud = "cloud"
	TargetLocal = "local"
)

// Environment is the deployment under test.  It's resolved once per
// session and never modified afterwards.
type Environment struct {
	// Name of the deployment.
	Name Name
	// APIBaseURL is the user facing API.
	APIBaseURL string
	// WorkerAPIBaseURL is the worker facing API.
	WorkerAPIBaseURL string
}

// IsLocal tells whether the session owns the deployment's lifecycle.
func (e *Environment) IsLocal() bool {
	return e.Name == Local
}

// JobTarget returns the worker pool jobs are submitted to.
func (e *Environment) JobTarget(cloud bool) string {
	if cloud {
		return TargetCloud
	}

	return TargetLocal
}

//nolint:gochecknoglobals
var known = map[Name]Environment{
	Local: {
		Name:             Local,
		APIBaseURL:       "http://localhost:8000",
		WorkerAPIBaseURL: "http://localhost:8001",
	},
	Dev: {
		Name:             Dev,
		APIBaseURL:       "https://dev.api.decode.arthur-jaques.de",
		WorkerAPIBaseURL: "https://dev.wapi.decode.arthur-jaques.de",
	},
	Prod: {
		Name:             Prod,
		APIBaseURL:       "https://prod.api.decode.arthur-jaques.de",
		WorkerAPIBaseURL: "https://prod.wapi.decode.arthur-jaques.de",
	},
}

type resolveOptions struct {
	apiURL string
}

// Option modifies resolution.
type Option func(*resolveOptions)

// WithAPIURL overrides the user facing API URL, an empty value is ignored.
func WithAPIURL(url string) Option {
	return func(o *resolveOptions) {
		o.apiURL = url
	}
}

// Resolve picks exactly one environment from the selection flags.
func Resolve(o *options.Options, opts ...Option) (*Environment, error) {
	var ro resolveOptions

	for _, opt := range opts {
		opt(&ro)
	}

	var selected []Name

	if o.Local {
		selected = append(selected, Local)
	}

	if o.Dev {
		selected = append(selected, Dev)
	}

	if o.Prod {
		selected = append(selected, Prod)
	}

	switch len(selected) {
	case 0:
		return nil, fmt.Errorf("%w: you must specify one of --local, --dev, or --prod", ErrConfiguration)
	case 1:
	default:
		return nil, fmt.Errorf("%w: you can only specify one of --local, --dev, or --prod, got %v", ErrConfiguration, selected)
	}

	env := known[selected[0]]

	if ro.apiURL != "" {
		env.APIBaseURL = strings.TrimSuffix(ro.apiURL, "/")
	}

	return &env, nil
}

// ValidateModifiers checks the hardware and worker modifiers make sense
// for the resolved environment.
func ValidateModifiers(env *Environment, o *options.Options) error {
	if o.GPU {
		return ErrGPUNotImplemented
	}

	if o.Cloud && env.IsLocal() {
		return fmt.Errorf("%w: cannot use --cloud with --local", ErrConfiguration)
	}

	return nil
}
