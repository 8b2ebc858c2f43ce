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

package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/jobs"
	"github.com/decode-cloud/e2e/pkg/testing/fakeapi"
	"github.com/decode-cloud/e2e/pkg/workflow"
)

const (
	experimentID = "20260102_030405"
	jobName      = "integration_test_job_" + experimentID
	configBody   = "epochs: 1\n"
)

func clock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

// echo uploads a config and a data file and expects the config to be
// stored back as a training artifact next to a model.
type echo struct {
	workDir string
}

var _ workflow.Workflow = &echo{}

func (*echo) Name() string {
	return "echo"
}

func (*echo) Application() jobs.Application {
	return jobs.Application{Application: "echo", Version: "v1", Entrypoint: "run"}
}

func (w *echo) InputFiles(_ context.Context, workDir string) ([]files.ApplicationFile, error) {
	w.workDir = workDir

	config := filepath.Join(workDir, "param.yaml")
	if err := os.WriteFile(config, []byte(configBody), 0o600); err != nil {
		return nil, err
	}

	data := filepath.Join(workDir, "frames.tif")
	if err := os.WriteFile(data, []byte("frames"), 0o600); err != nil {
		return nil, err
	}

	return []files.ApplicationFile{
		{Kind: files.KindConfig, Path: config},
		{Kind: files.KindData, Path: data},
	}, nil
}

func (*echo) VerifyDownload(ctx context.Context, run *workflow.Run, outputs workflow.Outputs) error {
	entries, err := outputs.List(ctx, files.Prefix(files.KindArtifact, run.JobName), true)
	if err != nil {
		return err
	}

	model := files.RemotePath(files.KindArtifact, run.JobName, "models/model_0.pt")
	if !slices.Contains(files.Paths(entries), model) {
		return workflow.Assertionf("%s not stored", model)
	}

	content, err := outputs.Download(ctx, files.RemotePath(files.KindArtifact, run.JobName, "training/param.yaml"))
	if err != nil {
		return err
	}

	if string(content) != configBody {
		return workflow.Assertionf("config changed in transit")
	}

	return nil
}

type fixture struct {
	server   *fakeapi.Server
	store    *files.Client
	service  *jobs.Client
	workflow *echo
}

func newFixture(t *testing.T, opts ...fakeapi.Option) *fixture {
	t.Helper()

	server, err := fakeapi.New(append(opts, fakeapi.WithToken("test-token"))...)
	require.NoError(t, err)

	t.Cleanup(server.Close)

	api := client.New(client.Options{BaseURL: server.URL()})
	api.SetAuthToken("test-token")

	return &fixture{
		server:   server,
		store:    files.New(api),
		service:  jobs.New(api),
		workflow: &echo{},
	}
}

func (f *fixture) scenario(t *testing.T, opts ...workflow.Option) *workflow.Scenario {
	t.Helper()

	defaults := []workflow.Option{
		workflow.WithClock(clock),
		workflow.WithWorkDir(t.TempDir()),
		workflow.WithPollInterval(time.Millisecond),
	}

	return workflow.New(f.workflow, f.store, f.service, append(defaults, opts...)...)
}

type recorder struct {
	lock    sync.Mutex
	results []workflow.Result
}

func (r *recorder) observe(result workflow.Result) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.results = append(r.results, result)
}

func (r *recorder) steps() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	steps := make([]string, len(r.results))

	for i := range r.results {
		steps[i] = r.results[i].Step
	}

	return steps
}

// TestScenarioRun ensures a healthy deployment passes every step in order.
func TestScenarioRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := &recorder{}

	scenario := f.scenario(t, workflow.WithObserver(r.observe))

	require.NoError(t, scenario.Run(t.Context()))
	require.Equal(t, workflow.StepNames(), r.steps())

	run := scenario.State()
	require.Equal(t, experimentID, run.ExperimentID)
	require.Equal(t, jobName, run.JobName)
	require.NotEmpty(t, run.JobID)
	require.True(t, f.server.Cancelled(run.JobID.String()))

	spec, ok := f.server.JobSpec(run.JobID.String())
	require.True(t, ok)
	require.Equal(t, jobName, spec.JobName)
	require.Equal(t, "local", spec.Environment)
	require.Equal(t, experimentID, spec.Attributes.FilesDown.ConfigID)
	require.Equal(t, []string{experimentID}, spec.Attributes.FilesDown.DataIDs)
	require.Empty(t, spec.Attributes.FilesDown.ArtifactIDs)

	content, ok := f.server.Object("config/" + experimentID + "/param.yaml")
	require.True(t, ok)
	require.Equal(t, configBody, string(content))

	require.Equal(t, "echo_"+experimentID, filepath.Base(f.workflow.workDir))
}

// TestScenarioTarget ensures jobs are submitted to the requested pool.
func TestScenarioTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	scenario := f.scenario(t, workflow.WithTarget("cloud"))

	for _, step := range []string{workflow.StepPrecondition, workflow.StepUpload, workflow.StepSubmit} {
		require.NoError(t, scenario.RunStep(t.Context(), step))
	}

	spec, ok := f.server.JobSpec(scenario.State().JobID.String())
	require.True(t, ok)
	require.Equal(t, "cloud", spec.Environment)
}

// TestScenarioPrecondition ensures leftovers from a previous experiment
// stop the scenario before anything is uploaded or submitted.
func TestScenarioPrecondition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.server.PutObject("data/"+experimentID+"/frames.tif", []byte("stale"))

	r := &recorder{}

	err := f.scenario(t, workflow.WithObserver(r.observe)).Run(t.Context())
	require.ErrorIs(t, err, workflow.ErrAssertion)

	var stepErr *workflow.StepError

	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, workflow.StepPrecondition, stepErr.Step)
	require.Equal(t, []string{workflow.StepPrecondition}, r.steps())
	require.Equal(t, 0, f.server.Calls(http.MethodPost, "/jobs"))
}

// TestScenarioListMismatch ensures unexpected files in the experiment's
// namespaces fail the listing step.
func TestScenarioListMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.server.PutObject("log/"+experimentID+"/unrelated.log", []byte("ignored"))

	scenario := f.scenario(t)

	require.NoError(t, scenario.RunStep(t.Context(), workflow.StepUpload))
	require.NoError(t, scenario.RunStep(t.Context(), workflow.StepList))

	f.server.PutObject("config/"+experimentID+"/extra.yaml", []byte("extra"))

	err := scenario.RunStep(t.Context(), workflow.StepList)
	require.ErrorIs(t, err, workflow.ErrAssertion)
	require.ErrorContains(t, err, "extra.yaml")
}

// TestScenarioQueued ensures the first observation must be queued exactly.
func TestScenarioQueued(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeapi.WithStatuses(jobs.StatusRunning))

	scenario := f.scenario(t)

	require.NoError(t, scenario.RunStep(t.Context(), workflow.StepSubmit))

	err := scenario.RunStep(t.Context(), workflow.StepQueued)
	require.ErrorIs(t, err, workflow.ErrAssertion)
}

// TestScenarioTimeout ensures a job that never progresses fails the wait
// with a timeout and, when asked, is cancelled.
func TestScenarioTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeapi.WithStatuses(jobs.StatusQueued, jobs.StatusFailed))

	scenario := f.scenario(t,
		workflow.WithTimeouts(workflow.Timeouts{Preprocessing: 50 * time.Millisecond}),
		workflow.WithCancelOnFailure(true),
	)

	err := scenario.Run(t.Context())
	require.ErrorIs(t, err, jobs.ErrTimeout)

	var stepErr *workflow.StepError

	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, workflow.StepPreprocessing, stepErr.Step)

	var timeoutErr *jobs.TimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, jobs.StatusFailed, timeoutErr.Last)

	require.True(t, f.server.Cancelled(scenario.State().JobID.String()))
	require.NoError(t, scenario.CancelPending(t.Context()))
	require.Equal(t, 1, f.server.Calls(http.MethodDelete, "/jobs/{id}"))
}

// TestScenarioCancelFailure ensures a failed cancellation is reported
// alongside the step error without hiding its type.
func TestScenarioCancelFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		fakeapi.WithStatuses(jobs.StatusQueued),
		fakeapi.WithCancelFailure(http.StatusConflict),
	)

	scenario := f.scenario(t,
		workflow.WithTimeouts(workflow.Timeouts{Preprocessing: 20 * time.Millisecond}),
		workflow.WithCancelOnFailure(true),
	)

	err := scenario.Run(t.Context())

	var stepErr *workflow.StepError

	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, workflow.StepPreprocessing, stepErr.Step)

	var timeoutErr *jobs.TimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, jobs.StatusQueued, timeoutErr.Last)

	var httpErr *client.HTTPError

	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.StatusCode)
	require.Equal(t, 1, f.server.Calls(http.MethodDelete, "/jobs/{id}"))
}

// TestScenarioNoCancelOnFailure ensures failed jobs are left alone by
// default.
func TestScenarioNoCancelOnFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeapi.WithStatuses(jobs.StatusQueued))

	scenario := f.scenario(t, workflow.WithTimeouts(workflow.Timeouts{Preprocessing: 20 * time.Millisecond}))

	require.ErrorIs(t, scenario.Run(t.Context()), jobs.ErrTimeout)
	require.False(t, f.server.Cancelled(scenario.State().JobID.String()))
}

// TestScenarioDownloadMissing ensures missing artifacts fail verification.
func TestScenarioDownloadMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeapi.WithArtifacts(nil))

	err := f.scenario(t).Run(t.Context())

	var stepErr *workflow.StepError

	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, workflow.StepDownload, stepErr.Step)
	require.True(t, client.IsNotFound(err))
}

// TestRunStepOrdering ensures steps that need a job refuse to run before
// submission and unknown steps are rejected.
func TestRunStepOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	scenario := f.scenario(t)

	for _, step := range []string{workflow.StepQueued, workflow.StepFinished, workflow.StepDownload, workflow.StepCancel} {
		err := scenario.RunStep(t.Context(), step)
		require.Error(t, err, step)
		require.ErrorContains(t, err, "not been submitted", step)
	}

	require.Error(t, scenario.RunStep(t.Context(), "teardown"))
	require.NoError(t, scenario.CancelPending(t.Context()))
	require.Equal(t, 0, f.server.Calls(http.MethodGet, "/jobs/{id}"))
}

// TestSteps ensures the step table matches the published order.
func TestSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	steps := f.scenario(t).Steps()

	names := make([]string, len(steps))

	for i := range steps {
		names[i] = steps[i].Name
	}

	require.Equal(t, workflow.StepNames(), names)
	require.Len(t, names, 11)
}

// TestDefaultTimeouts ensures each status wait has its own deadline.
func TestDefaultTimeouts(t *testing.T) {
	t.Parallel()

	expected := workflow.Timeouts{
		Preprocessing:  10 * time.Minute,
		Running:        10 * time.Minute,
		Postprocessing: 30 * time.Minute,
		Finished:       10 * time.Minute,
	}

	require.Equal(t, expected, workflow.DefaultTimeouts())

	f := newFixture(t)

	require.Equal(t, expected, f.scenario(t).Timeouts())
}

// TestWithTimeouts ensures only the non-zero deadlines given are replaced.
func TestWithTimeouts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	scenario := f.scenario(t,
		workflow.WithTimeouts(workflow.Timeouts{Running: time.Minute}),
		workflow.WithTimeouts(workflow.Timeouts{Finished: 2 * time.Minute}),
	)

	require.Equal(t, workflow.Timeouts{
		Preprocessing:  10 * time.Minute,
		Running:        time.Minute,
		Postprocessing: 30 * time.Minute,
		Finished:       2 * time.Minute,
	}, scenario.Timeouts())
}

// TestAssertionf ensures assertion failures are recognisable.
func TestAssertionf(t *testing.T) {
	t.Parallel()

	err := workflow.Assertionf("expected %d files", 2)
	require.ErrorIs(t, err, workflow.ErrAssertion)
	require.EqualError(t, err, "assertion failed: expected 2 files")

	stepErr := &workflow.StepError{Step: workflow.StepList, Err: err}
	require.EqualError(t, stepErr, "step list: assertion failed: expected 2 files")
	require.True(t, errors.Is(stepErr, workflow.ErrAssertion))
}
