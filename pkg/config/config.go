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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingConfiguration is raised when required variables are unset.
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// hostedPrefix is prepended to credential variables for hosted deployments
// so local and hosted accounts can live in the same .env file.
const hostedPrefix = "TEST_"

// Config is read once per session from the process environment.
type Config struct {
	// APIURL overrides the user facing API URL of the environment.
	APIURL string
	// AccessToken is a pre-issued bearer token, authentication is
	// skipped when set.
	AccessToken string
	// Device overrides the training device, e.g. "cpu" or "cuda".
	Device string
	// Environment selects an environment when no flag does.
	Environment string
	// RequestTimeout bounds every HTTP request.
	RequestTimeout time.Duration
	// LogRequests and LogResponses enable verbose HTTP logging.
	LogRequests  bool
	LogResponses bool

	lookup func(string) (string, bool)
}

// Load reads configuration from environment variables, after loading any
// of the given dotenv files that exist.  Variables already present in the
// environment take precedence over dotenv files.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	return FromLookup(os.LookupEnv), nil
}

// FromLookup builds configuration from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) *Config {
	get := func(key string) string {
		value, _ := lookup(key)

		return value
	}

	return &Config{
		APIURL:         get("API_URL"),
		AccessToken:    get("ACCESS_TOKEN"),
		Device:         get("DEVICE"),
		Environment:    get("ENVIRONMENT"),
		RequestTimeout: getDurationWithDefault(get("REQUEST_TIMEOUT"), 30*time.Second),
		LogRequests:    getBoolWithDefault(get("LOG_REQUESTS"), false),
		LogResponses:   getBoolWithDefault(get("LOG_RESPONSES"), false),
		lookup:         lookup,
	}
}

// Credentials returns the account used to authenticate.  Local deployments
// read EMAIL and PASSWORD, hosted ones TEST_EMAIL and TEST_PASSWORD.
func (c *Config) Credentials(local bool) (string, string, error) {
	prefix := hostedPrefix
	if local {
		prefix = ""
	}

	emailKey := prefix + "EMAIL"
	passwordKey := prefix + "PASSWORD"

	email, _ := c.lookup(emailKey)
	password, _ := c.lookup(passwordKey)

	if err := validateRequiredFields(map[string]string{
		emailKey:    email,
		passwordKey: password,
	}); err != nil {
		return "", "", err
	}

	return email, password, nil
}

// getDurationWithDefault parses a duration or returns default.
func getDurationWithDefault(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getBoolWithDefault parses a boolean or returns default.
func getBoolWithDefault(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

func loadEnvFiles(paths []string) error {
	var existing []string

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			// Not found is fine, in CI variables are set directly.
			continue
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}

		existing = append(existing, absPath)
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading dotenv files %s: %w", strings.Join(existing, ", "), err)
	}

	return nil
}

// validateRequiredFields checks that all required configuration values are set.
func validateRequiredFields(required map[string]string) error {
	var missing []string

	for envVar, value := range required {
		if value == "" {
			missing = append(missing, envVar)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Errorf("%w: %s, set these environment variables or add them to a .env file", ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	return nil
}
