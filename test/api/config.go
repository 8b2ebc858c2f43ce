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

package api

import (
	"flag"

	"github.com/decode-cloud/e2e/pkg/config"
	"github.com/decode-cloud/e2e/pkg/options"
)

// TestConfig is everything a suite needs to open a session.
type TestConfig struct {
	Options *options.Options
	Config  *config.Config
}

// RegisterFlags adds the harness options to a go test binary's flags.  Call
// it from an init function so the values are parsed with the test flags.
func RegisterFlags(f *flag.FlagSet) *options.Options {
	o := &options.Options{}
	o.AddGoFlags(f)

	return o
}

// LoadTestConfig reads the environment, including any dotenv files named
// by the options.
func LoadTestConfig(o *options.Options) (*TestConfig, error) {
	cfg, err := config.Load(o.EnvFiles...)
	if err != nil {
		return nil, err
	}

	return &TestConfig{
		Options: o,
		Config:  cfg,
	}, nil
}
