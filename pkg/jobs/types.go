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

package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Status is the lifecycle state of a job.  Only the remote service moves a
// job between states.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusPreprocessing  Status = "preprocessing"
	StatusRunning        Status = "running"
	StatusPostprocessing Status = "postprocessing"
	StatusFinished       Status = "finished"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

// Lifecycle returns the non-terminal progression of a successful job,
// ending with finished.
func Lifecycle() []Status {
	return []Status{StatusQueued, StatusPreprocessing, StatusRunning, StatusPostprocessing, StatusFinished}
}

// Terminal reports whether the job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusFailed
}

// Before reports whether s comes strictly before other in the lifecycle.
// Statuses outside the lifecycle are never before anything.
func (s Status) Before(other Status) bool {
	lifecycle := Lifecycle()

	i := slices.Index(lifecycle, s)
	j := slices.Index(lifecycle, other)

	return i >= 0 && j >= 0 && i < j
}

// ID is a job identifier.  The API is free to issue either strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string

		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	var n json.Number

	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id must be a string or number: %w", err)
	}

	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("job id must be a string or number: %w", err)
	}

	*id = ID(n.String())

	return nil
}

func (id ID) String() string {
	return string(id)
}

// Job is what the API reports about a submitted job.
type Job struct {
	ID     ID     `json:"id"`
	Name   string `json:"job_name,omitempty"`
	Status Status `json:"status"`
}

// Application identifies the remote workflow a job runs.
type Application struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Entrypoint  string `json:"entrypoint"`
}

func (a Application) String() string {
	return a.Application + "/" + a.Version + "/" + a.Entrypoint
}

// FilesDown references the uploaded inputs by experiment id.
type FilesDown struct {
	ConfigID    string   `json:"config_id"`
	DataIDs     []string `json:"data_ids"`
	ArtifactIDs []string `json:"artifact_ids"`
}

type Attributes struct {
	FilesDown FilesDown         `json:"files_down"`
	EnvVars   map[string]string `json:"env_vars"`
}

// Hardware hints.  Nil leaves the choice to the scheduler and is sent as null.
type Hardware struct {
	CPUCores *int    `json:"cpu_cores"`
	Memory   *int    `json:"memory"`
	GPUModel *string `json:"gpu_model"`
	GPUArchi *string `json:"gpu_archi"`
	GPUMem   *int    `json:"gpu_mem"`
}

// Spec is the job document submitted to the API.
type Spec struct {
	JobName     string      `json:"job_name"`
	Environment string      `json:"environment"`
	Priority    int         `json:"priority"`
	Application Application `json:"application"`
	Attributes  Attributes  `json:"attributes"`
	Hardware    Hardware    `json:"hardware"`
}
