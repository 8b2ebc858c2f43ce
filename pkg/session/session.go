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

// Package session composes everything a scenario needs for one run
// against one environment.  A session is opened once and read only after.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/decode-cloud/e2e/pkg/auth"
	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/config"
	"github.com/decode-cloud/e2e/pkg/environment"
	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/jobs"
	"github.com/decode-cloud/e2e/pkg/options"
	"github.com/decode-cloud/e2e/pkg/workflow"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

type openOptions struct {
	stack             environment.Stack
	httpClient        *http.Client
	identityProviders auth.IdentityProviderFactory
}

type Option func(*openOptions)

// WithStack replaces the docker compose stack started for local runs.
func WithStack(stack environment.Stack) Option {
	return func(o *openOptions) {
		o.stack = stack
	}
}

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *openOptions) {
		o.httpClient = c
	}
}

// WithIdentityProviders replaces the Cognito client used by hosted
// environments.
func WithIdentityProviders(factory auth.IdentityProviderFactory) Option {
	return func(o *openOptions) {
		o.identityProviders = factory
	}
}

// Session is the state shared by every step of a run.
type Session struct {
	Options     *options.Options
	Config      *config.Config
	Environment *environment.Environment

	API   *client.Client
	Files *files.Client
	Jobs  *jobs.Client

	stack *environment.ManagedStack
}

// Open resolves the environment, starts the local stack when required and
// authenticates.  When Open fails nothing is left running.
func Open(ctx context.Context, o *options.Options, cfg *config.Config, opts ...Option) (*Session, error) {
	var oo openOptions

	for _, opt := range opts {
		opt(&oo)
	}

	if err := o.ApplyEnvironment(cfg.Environment); err != nil {
		return nil, fmt.Errorf("%w: %w", environment.ErrConfiguration, err)
	}

	env, err := environment.Resolve(o, environment.WithAPIURL(cfg.APIURL))
	if err != nil {
		return nil, err
	}

	if err := environment.ValidateModifiers(env, o); err != nil {
		return nil, err
	}

	log := log.FromContext(ctx).WithValues("environment", env.Name)

	log.Info("opening session", "api", env.APIBaseURL)

	stack := oo.stack
	if stack == nil {
		stack = environment.NewComposeStack(o.ComposeFile, o.ComposeProject)
	}

	managed, err := environment.Acquire(ctx, env, stack, o.SettlePeriod)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Options:     o,
		Config:      cfg,
		Environment: env,
		stack:       managed,
	}

	if err := s.connect(ctx, oo); err != nil {
		if releaseErr := managed.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			return nil, errors.Join(err, releaseErr)
		}

		return nil, err
	}

	return s, nil
}

func (s *Session) connect(ctx context.Context, oo openOptions) error {
	s.API = client.New(client.Options{
		BaseURL:      s.Environment.APIBaseURL,
		Timeout:      s.Config.RequestTimeout,
		LogRequests:  s.Config.LogRequests,
		LogResponses: s.Config.LogResponses,
		HTTPClient:   oo.httpClient,
	})

	selection := auth.Selection{
		AccessToken:       s.Config.AccessToken,
		IdentityProviders: oo.identityProviders,
	}

	if selection.AccessToken == "" {
		email, password, err := s.Config.Credentials(s.Environment.IsLocal())
		if err != nil {
			return err
		}

		selection.Credentials = auth.Credentials{Email: email, Password: password}
	}

	if err := auth.Authenticate(ctx, auth.ForEnvironment(s.Environment, s.API, selection), s.API); err != nil {
		return err
	}

	s.Files = files.New(s.API)
	s.Jobs = jobs.New(s.API)

	return nil
}

// Run opens a session, calls fn with it and closes it on every exit path,
// including panics.  A close failure is joined to fn's error.
func Run(ctx context.Context, o *options.Options, cfg *config.Config, fn func(context.Context, *Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, o, cfg, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := s.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ctx, s)
}

// Close stops the local stack if one was started.
func (s *Session) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	return s.stack.Release(ctx)
}

// Target is where submitted jobs run.
func (s *Session) Target() string {
	return s.Environment.JobTarget(s.Options.Cloud)
}

// Device is what applications compute on.
func (s *Session) Device() string {
	if s.Config.Device != "" {
		return s.Config.Device
	}

	if s.Options.GPU {
		return "cuda"
	}

	return "cpu"
}

// Scenario returns a scenario for wf configured from the session options.
func (s *Session) Scenario(wf workflow.Workflow, opts ...workflow.Option) *workflow.Scenario {
	defaults := []workflow.Option{
		workflow.WithTarget(s.Target()),
		workflow.WithWorkDir(s.Options.WorkDir),
		workflow.WithPollInterval(s.Options.PollInterval),
		workflow.WithTimeouts(workflow.Timeouts{
			Preprocessing:  s.Options.PreprocessingTimeout,
			Running:        s.Options.RunningTimeout,
			Postprocessing: s.Options.PostprocessingTimeout,
			Finished:       s.Options.FinishedTimeout,
		}),
		workflow.WithCancelOnFailure(s.Options.CancelOnFailure),
	}

	return workflow.New(wf, s.Files, s.Jobs, append(defaults, opts...)...)
}
