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
	"fmt"
	"net/http"

	"github.com/decode-cloud/e2e/pkg/client"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Client submits, observes and cancels jobs.
type Client struct {
	api *client.Client
}

// New returns a job client sharing the API client's credential.
func New(api *client.Client) *Client {
	return &Client{
		api: api,
	}
}

// Submit creates a job and returns the id the API assigned it.
func (c *Client) Submit(ctx context.Context, spec Spec) (ID, error) {
	var job Job

	if err := c.api.DoJSON(ctx, http.MethodPost, c.api.Endpoints().Jobs(), spec, &job); err != nil {
		return "", fmt.Errorf("submitting job %s: %w", spec.JobName, err)
	}

	if job.ID == "" {
		return "", fmt.Errorf("submitting job %s: response carries no id", spec.JobName)
	}

	log.FromContext(ctx).Info("submitted job", "name", spec.JobName, "id", job.ID, "application", spec.Application.String())

	return job.ID, nil
}

// Get reads a job.
func (c *Client) Get(ctx context.Context, id ID) (*Job, error) {
	path, err := c.api.Endpoints().Job(id.String())
	if err != nil {
		return nil, err
	}

	var job Job

	if err := c.api.DoJSON(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, fmt.Errorf("reading job %s: %w", id, err)
	}

	return &job, nil
}

// Status reads a job's current status.
func (c *Client) Status(ctx context.Context, id ID) (Status, error) {
	job, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}

	return job.Status, nil
}

// Cancel deletes a job.  Any non-2xx response is an error, a job that
// cannot be cancelled may keep running remotely.
func (c *Client) Cancel(ctx context.Context, id ID) error {
	path, err := c.api.Endpoints().Job(id.String())
	if err != nil {
		return err
	}

	if err := c.api.DoJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("cancelling job %s: %w", id, err)
	}

	log.FromContext(ctx).Info("cancelled job", "id", id)

	return nil
}
