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

	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/jobs"
)

var (
	// ErrAssertion is wrapped by every failed verification.
	ErrAssertion = errors.New("assertion failed")
)

// Assertionf returns an error wrapping ErrAssertion.
func Assertionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
}

// StepError records which step of a scenario failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Outputs is the read side of remote file storage.
type Outputs interface {
	List(ctx context.Context, prefix string, recursive bool) ([]files.Entry, error)
	Download(ctx context.Context, remotePath string) ([]byte, error)
}

// FileStore is remote file storage.
type FileStore interface {
	Outputs
	Exists(ctx context.Context, remotePath string) (bool, error)
	Upload(ctx context.Context, remotePath, localFile string) error
}

// JobService manages remote jobs.
type JobService interface {
	jobs.StatusReader
	Submit(ctx context.Context, spec jobs.Spec) (jobs.ID, error)
	Cancel(ctx context.Context, id jobs.ID) error
}

// Run is the state shared by the steps of one scenario execution.
type Run struct {
	// ExperimentID namespaces the uploaded inputs.
	ExperimentID string
	// JobName is the submitted job's name, outputs are stored under it.
	JobName string
	// JobID is set once the job has been submitted.
	JobID jobs.ID
	// Inputs are the prepared local input files.
	Inputs []files.ApplicationFile
}

// Input returns the first prepared input of a kind.
func (r *Run) Input(kind files.Kind) (files.ApplicationFile, bool) {
	for _, input := range r.Inputs {
		if input.Kind == kind {
			return input, true
		}
	}

	return files.ApplicationFile{}, false
}

// Workflow is what varies between application scenarios.
type Workflow interface {
	// Name is a short identifier used in logs and directory names.
	Name() string
	// Application is the remote application the job runs.
	Application() jobs.Application
	// InputFiles prepares the local inputs below workDir.
	InputFiles(ctx context.Context, workDir string) ([]files.ApplicationFile, error)
	// VerifyDownload checks the job's outputs once it has finished.
	VerifyDownload(ctx context.Context, run *Run, outputs Outputs) error
}
