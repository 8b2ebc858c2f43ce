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

// Package contract holds helpers shared by consumer contract tests.
package contract

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pact-foundation/pact-go/v2/consumer"
)

// PactConfig names the pact being written.
type PactConfig struct {
	Consumer string
	Provider string
	// PactDir is where pact files are written, relative to the test.
	PactDir string
	// LogDir defaults to PactDir.
	LogDir string
}

// NewV4Pact returns a mock provider recording V4 interactions.
func NewV4Pact(config PactConfig) (*consumer.V4HTTPMockProvider, error) {
	logDir := config.LogDir
	if logDir == "" {
		logDir = config.PactDir
	}

	pact, err := consumer.NewV4Pact(consumer.MockHTTPProviderConfig{
		Consumer: config.Consumer,
		Provider: config.Provider,
		PactDir:  config.PactDir,
		LogDir:   logDir,
		Host:     "127.0.0.1",
	})
	if err != nil {
		return nil, fmt.Errorf("creating pact: %w", err)
	}

	return pact, nil
}

// URL is the base URL of a running mock server.
func URL(config consumer.MockServerConfig) string {
	return "http://" + net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
}
