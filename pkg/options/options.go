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

package options

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	// DefaultSettlePeriod is how long a freshly started local stack is
	// given before the session uses it.
	DefaultSettlePeriod = 30 * time.Second

	// DefaultPollInterval is the delay between job status samples.
	DefaultPollInterval = 5 * time.Second
)

// Options are the harness command line options.  They select the target
// deployment, gate hardware and worker modifiers and tune the scenario.
type Options struct {
	// Local, Dev and Prod are mutually exclusive environment selectors.
	Local bool
	Dev   bool
	Prod  bool

	// GPU requests applications run on a GPU.
	GPU bool

	// Cloud requests the job is run on a cloud worker.
	Cloud bool

	// EnvFiles are dotenv files loaded before the environment is read.
	EnvFiles []string

	// ComposeFile and ComposeProject describe the local service stack.
	ComposeFile    string
	ComposeProject string

	// SettlePeriod is the wait after the local stack is started.
	SettlePeriod time.Duration

	// PollInterval is the delay between status samples.
	PollInterval time.Duration

	// Per status deadlines.
	PreprocessingTimeout  time.Duration
	RunningTimeout        time.Duration
	PostprocessingTimeout time.Duration
	FinishedTimeout       time.Duration

	// WorkDir is where input assets are unpacked, a temporary directory
	// is used when empty.
	WorkDir string

	// AssetURL and AssetDir are alternate sources of example inputs.
	AssetURL string
	AssetDir string

	// CancelOnFailure cancels a submitted job when a later step fails.
	CancelOnFailure bool
}

// AddFlags registers the options with a flag set.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.BoolVar(&o.Local, "local", false, "Run tests against a locally deployed environment, started with docker compose.")
	f.BoolVar(&o.Dev, "dev", false, "Run tests against the dev environment.")
	f.BoolVar(&o.Prod, "prod", false, "Run tests against the prod environment.")
	f.BoolVar(&o.GPU, "gpu", false, "Run applications on GPU.")
	f.BoolVar(&o.Cloud, "cloud", false, "Run applications on a cloud worker.")
	f.StringSliceVar(&o.EnvFiles, "env-file", []string{".env"}, "Dotenv files to load, missing files are ignored.")
	f.StringVar(&o.ComposeFile, "compose-file", "docker-compose.yaml", "Compose file describing the local stack.")
	f.StringVar(&o.ComposeProject, "compose-project", "", "Compose project name for the local stack.")
	f.DurationVar(&o.SettlePeriod, "settle-period", DefaultSettlePeriod, "Time to wait for the local stack to become ready.")
	f.DurationVar(&o.PollInterval, "poll-interval", DefaultPollInterval, "Delay between job status samples.")
	f.DurationVar(&o.PreprocessingTimeout, "preprocessing-timeout", 10*time.Minute, "Deadline for a job to reach preprocessing.")
	f.DurationVar(&o.RunningTimeout, "running-timeout", 10*time.Minute, "Deadline for a job to reach running.")
	f.DurationVar(&o.PostprocessingTimeout, "postprocessing-timeout", 30*time.Minute, "Deadline for a job to reach postprocessing.")
	f.DurationVar(&o.FinishedTimeout, "finished-timeout", 10*time.Minute, "Deadline for a job to reach finished.")
	f.StringVar(&o.WorkDir, "work-dir", "", "Directory for unpacked input assets.")
	f.StringVar(&o.AssetURL, "asset-url", "", "URL of a zip archive of example inputs.")
	f.StringVar(&o.AssetDir, "asset-dir", "", "Local directory of example inputs, overrides --asset-url.")
	f.BoolVar(&o.CancelOnFailure, "cancel-on-failure", false, "Cancel the submitted job if a later step fails.")
}

// AddGoFlags registers the options with a standard library flag set, this
// is how options reach a "go test" binary, e.g. "go test ./... -args --dev".
func (o *Options) AddGoFlags(f *flag.FlagSet) {
	set := pflag.NewFlagSet("options", pflag.ContinueOnError)

	o.AddFlags(set)

	set.VisitAll(func(pf *pflag.Flag) {
		f.Var(pf.Value, pf.Name, pf.Usage)
	})
}

// Selected returns the number of environment selectors set.
func (o *Options) Selected() int {
	var n int

	for _, selected := range []bool{o.Local, o.Dev, o.Prod} {
		if selected {
			n++
		}
	}

	return n
}

// ApplyEnvironment selects an environment by name when no selector flag
// was given.  Explicit flags always win.
func (o *Options) ApplyEnvironment(name string) error {
	if name == "" || o.Selected() != 0 {
		return nil
	}

	switch name {
	case "local":
		o.Local = true
	case "dev":
		o.Dev = true
	case "prod":
		o.Prod = true
	default:
		return fmt.Errorf("%w: unknown environment %q", ErrUnknownEnvironment, name)
	}

	return nil
}
