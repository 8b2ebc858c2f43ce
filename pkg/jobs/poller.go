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
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	ErrTimeout = errors.New("timed out waiting for job status")
)

// TimeoutError is returned when a job is not seen in the target status
// before the deadline.
type TimeoutError struct {
	JobID   ID
	Target  Status
	Last    Status
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	last := string(e.Last)
	if last == "" {
		last = "none"
	}

	return fmt.Sprintf("job %s did not reach status %s within %s, last observed %s", e.JobID, e.Target, e.Timeout, last)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// StatusReader reads the current status of a job.
type StatusReader interface {
	Status(ctx context.Context, id ID) (Status, error)
}

// Poller waits for jobs to reach a status.
type Poller struct {
	jobs StatusReader
}

// NewPoller returns a poller sampling statuses from jobs.
func NewPoller(jobs StatusReader) *Poller {
	return &Poller{
		jobs: jobs,
	}
}

// WaitFor samples the job's status immediately and then every interval
// until it equals target.  Only the target itself is looked for, a job
// that has already moved past it is not detected and times out.
func (p *Poller) WaitFor(ctx context.Context, id ID, target Status, interval, timeout time.Duration) error {
	log := log.FromContext(ctx).WithValues("job", id, "target", target)

	var last Status

	samples := 0

	// readErr is a failed status read that was not caused by the poll
	// deadline, e.g. a per request timeout.  It is never a job timeout.
	var readErr error

	condition := func(ctx context.Context) (bool, error) {
		status, err := p.jobs.Status(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				readErr = err
			}

			return false, err
		}

		samples++

		if status != last {
			log.Info("observed job status", "status", status, "samples", samples)
		}

		last = status

		return status == target, nil
	}

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, condition)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if readErr != nil {
		return readErr
	}

	if wait.Interrupted(err) {
		return &TimeoutError{
			JobID:   id,
			Target:  target,
			Last:    last,
			Timeout: timeout,
		}
	}

	return err
}
