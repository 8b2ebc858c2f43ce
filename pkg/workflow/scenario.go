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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/jobs"

	"k8s.io/apimachinery/pkg/util/sets"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Step names in execution order.
const (
	StepPrecondition   = "precondition"
	StepUpload         = "upload"
	StepList           = "list"
	StepSubmit         = "submit"
	StepQueued         = "queued"
	StepPreprocessing  = "preprocessing"
	StepRunning        = "running"
	StepPostprocessing = "postprocessing"
	StepFinished       = "finished"
	StepDownload       = "download"
	StepCancel         = "cancel"
)

// StepNames returns every step name in execution order.
func StepNames() []string {
	return []string{
		StepPrecondition,
		StepUpload,
		StepList,
		StepSubmit,
		StepQueued,
		StepPreprocessing,
		StepRunning,
		StepPostprocessing,
		StepFinished,
		StepDownload,
		StepCancel,
	}
}

const (
	DefaultPollInterval = 5 * time.Second

	experimentIDLayout = "20060102_150405"
	jobNamePrefix      = "integration_test_job_"
)

// Timeouts bound how long each status may take to be observed.
type Timeouts struct {
	Preprocessing  time.Duration
	Running        time.Duration
	Postprocessing time.Duration
	Finished       time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Preprocessing:  10 * time.Minute,
		Running:        10 * time.Minute,
		Postprocessing: 30 * time.Minute,
		Finished:       10 * time.Minute,
	}
}

func (t Timeouts) merge(overrides Timeouts) Timeouts {
	pick := func(current, override time.Duration) time.Duration {
		if override > 0 {
			return override
		}

		return current
	}

	return Timeouts{
		Preprocessing:  pick(t.Preprocessing, overrides.Preprocessing),
		Running:        pick(t.Running, overrides.Running),
		Postprocessing: pick(t.Postprocessing, overrides.Postprocessing),
		Finished:       pick(t.Finished, overrides.Finished),
	}
}

// Step is one independently reportable part of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is reported to observers after each executed step.
type Result struct {
	Step     string
	Duration time.Duration
	Err      error
}

type Option func(*Scenario)

// WithTarget sets where the job runs, "cloud" or "local".
func WithTarget(target string) Option {
	return func(s *Scenario) {
		s.target = target
	}
}

// WithWorkDir sets the directory inputs are prepared in.
func WithWorkDir(dir string) Option {
	return func(s *Scenario) {
		s.workDir = dir
	}
}

// WithPollInterval sets the delay between status samples, zero keeps the
// default.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Scenario) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithTimeouts overrides the non-zero timeouts given.
func WithTimeouts(timeouts Timeouts) Option {
	return func(s *Scenario) {
		s.timeouts = s.timeouts.merge(timeouts)
	}
}

// WithCancelOnFailure cancels a submitted job when a later step fails.
func WithCancelOnFailure(enabled bool) Option {
	return func(s *Scenario) {
		s.cancelOnFailure = enabled
	}
}

// WithClock overrides the time source the experiment id is derived from.
func WithClock(now func() time.Time) Option {
	return func(s *Scenario) {
		s.now = now
	}
}

// WithObserver is called after every step Run executes.
func WithObserver(observer func(Result)) Option {
	return func(s *Scenario) {
		s.observer = observer
	}
}

// Scenario drives one workflow through the job lifecycle.
type Scenario struct {
	workflow Workflow
	files    FileStore
	jobs     JobService
	poller   *jobs.Poller

	target          string
	workDir         string
	pollInterval    time.Duration
	timeouts        Timeouts
	cancelOnFailure bool
	now             func() time.Time
	observer        func(Result)

	run       Run
	cancelled bool
}

// New creates a scenario with a fresh experiment id.
func New(workflow Workflow, store FileStore, service JobService, opts ...Option) *Scenario {
	s := &Scenario{
		workflow:     workflow,
		files:        store,
		jobs:         service,
		poller:       jobs.NewPoller(service),
		target:       "local",
		pollInterval: DefaultPollInterval,
		timeouts:     DefaultTimeouts(),
		now:          time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	id := s.now().UTC().Format(experimentIDLayout)

	s.run = Run{
		ExperimentID: id,
		JobName:      jobNamePrefix + id,
	}

	return s
}

// State returns the scenario's shared state.
func (s *Scenario) State() *Run {
	return &s.run
}

// Timeouts returns the deadline applied to each status wait.
func (s *Scenario) Timeouts() Timeouts {
	return s.timeouts
}

// Steps returns the steps in execution order.
func (s *Scenario) Steps() []Step {
	return []Step{
		{Name: StepPrecondition, Run: s.precondition},
		{Name: StepUpload, Run: s.upload},
		{Name: StepList, Run: s.list},
		{Name: StepSubmit, Run: s.submit},
		{Name: StepQueued, Run: s.queued},
		{Name: StepPreprocessing, Run: s.waitFor(jobs.StatusPreprocessing, func() time.Duration { return s.timeouts.Preprocessing })},
		{Name: StepRunning, Run: s.waitFor(jobs.StatusRunning, func() time.Duration { return s.timeouts.Running })},
		{Name: StepPostprocessing, Run: s.waitFor(jobs.StatusPostprocessing, func() time.Duration { return s.timeouts.Postprocessing })},
		{Name: StepFinished, Run: s.waitFor(jobs.StatusFinished, func() time.Duration { return s.timeouts.Finished })},
		{Name: StepDownload, Run: s.download},
		{Name: StepCancel, Run: s.cancel},
	}
}

// RunStep executes a single named step.
func (s *Scenario) RunStep(ctx context.Context, name string) error {
	for _, step := range s.Steps() {
		if step.Name == name {
			if err := s.execute(ctx, step); err != nil {
				return &StepError{Step: name, Err: err}
			}

			return nil
		}
	}

	return &StepError{Step: name, Err: errors.New("unknown step")}
}

func (s *Scenario) execute(ctx context.Context, step Step) error {
	logger := log.FromContext(ctx).WithValues("workflow", s.workflow.Name(), "step", step.Name)

	logger.Info("running step")

	start := time.Now()
	err := step.Run(log.IntoContext(ctx, logger))
	duration := time.Since(start)

	if s.observer != nil {
		s.observer(Result{Step: step.Name, Duration: duration, Err: err})
	}

	if err != nil {
		logger.Error(err, "step failed", "duration", duration)

		return err
	}

	logger.Info("step complete", "duration", duration)

	return nil
}

// Run executes every step in order and stops at the first failure.
func (s *Scenario) Run(ctx context.Context) error {
	for _, step := range s.Steps() {
		err := s.execute(ctx, step)
		if err == nil {
			continue
		}

		if s.cancelOnFailure && step.Name != StepCancel {
			if cancelErr := s.CancelPending(context.WithoutCancel(ctx)); cancelErr != nil {
				err = errors.Join(err, cancelErr)
			}
		}

		return &StepError{Step: step.Name, Err: err}
	}

	return nil
}

// CancelPending cancels the job if it was submitted and not yet cancelled.
func (s *Scenario) CancelPending(ctx context.Context) error {
	if s.run.JobID == "" || s.cancelled {
		return nil
	}

	log.FromContext(ctx).Info("cancelling job left behind by failed scenario", "job", s.run.JobID)

	return s.cancel(ctx)
}

func (s *Scenario) submitted() error {
	if s.run.JobID == "" {
		return errors.New("job has not been submitted")
	}

	return nil
}

// precondition checks nothing is stored for the experiment yet.
func (s *Scenario) precondition(ctx context.Context) error {
	for _, kind := range []files.Kind{files.KindConfig, files.KindData, files.KindArtifact} {
		remotePath := string(kind) + "/" + s.run.ExperimentID

		exists, err := s.files.Exists(ctx, remotePath)
		if err != nil {
			return err
		}

		if exists {
			return Assertionf("%s already exists before upload", remotePath)
		}
	}

	return nil
}

func (s *Scenario) upload(ctx context.Context) error {
	if s.run.Inputs == nil {
		workDir, err := s.prepareWorkDir()
		if err != nil {
			return err
		}

		inputs, err := s.workflow.InputFiles(ctx, workDir)
		if err != nil {
			return fmt.Errorf("preparing inputs: %w", err)
		}

		s.run.Inputs = inputs
	}

	for _, input := range s.run.Inputs {
		if !input.Kind.Valid() {
			return fmt.Errorf("input %s has unknown kind %q", input.Path, input.Kind)
		}

		if err := s.files.Upload(ctx, input.RemotePath(s.run.ExperimentID), input.Path); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) prepareWorkDir() (string, error) {
	if s.workDir != "" {
		dir := filepath.Join(s.workDir, s.workflow.Name()+"_"+s.run.ExperimentID)

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating work directory: %w", err)
		}

		return dir, nil
	}

	dir, err := os.MkdirTemp("", s.workflow.Name()+"_")
	if err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}

	return dir, nil
}

// list checks the listing holds exactly the uploaded inputs within the
// experiment's namespaces.
func (s *Scenario) list(ctx context.Context) error {
	entries, err := s.files.List(ctx, "", true)
	if err != nil {
		return err
	}

	expected := sets.New[string]()
	prefixes := sets.New[string]()

	for _, input := range s.run.Inputs {
		expected.Insert(input.RemotePath(s.run.ExperimentID))
		prefixes.Insert(files.Prefix(input.Kind, s.run.ExperimentID))
	}

	observed := sets.New[string]()

	for _, path := range files.Paths(entries) {
		for prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				observed.Insert(path)
			}
		}
	}

	if !observed.Equal(expected) {
		return Assertionf("listing mismatch, missing %v, unexpected %v",
			sets.List(expected.Difference(observed)), sets.List(observed.Difference(expected)))
	}

	return nil
}

func (s *Scenario) submit(ctx context.Context) error {
	spec := jobs.NewSpec(s.run.JobName, s.run.ExperimentID, s.workflow.Application()).
		WithEnvironment(s.target).
		Build()

	id, err := s.jobs.Submit(ctx, spec)
	if err != nil {
		return err
	}

	s.run.JobID = id
	s.cancelled = false

	return nil
}

func (s *Scenario) queued(ctx context.Context) error {
	if err := s.submitted(); err != nil {
		return err
	}

	status, err := s.jobs.Status(ctx, s.run.JobID)
	if err != nil {
		return err
	}

	if status != jobs.StatusQueued {
		return Assertionf("job %s has status %s, expected %s", s.run.JobID, status, jobs.StatusQueued)
	}

	return nil
}

func (s *Scenario) waitFor(target jobs.Status, timeout func() time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := s.submitted(); err != nil {
			return err
		}

		return s.poller.WaitFor(ctx, s.run.JobID, target, s.pollInterval, timeout())
	}
}

func (s *Scenario) download(ctx context.Context) error {
	if err := s.submitted(); err != nil {
		return err
	}

	return s.workflow.VerifyDownload(ctx, &s.run, s.files)
}

func (s *Scenario) cancel(ctx context.Context) error {
	if err := s.submitted(); err != nil {
		return err
	}

	if err := s.jobs.Cancel(ctx, s.run.JobID); err != nil {
		return err
	}

	s.cancelled = true

	return nil
}
