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

package fakeapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/testing/fakeapi"
)

func newServer(t *testing.T, opts ...fakeapi.Option) (*fakeapi.Server, *client.Client) {
	t.Helper()

	server, err := fakeapi.New(append(opts, fakeapi.WithToken("test-token"))...)
	require.NoError(t, err)

	t.Cleanup(server.Close)

	api := client.New(client.Options{BaseURL: server.URL(), HTTPClient: server.Client()})
	api.SetAuthToken("test-token")

	return server, api
}

// TestSchema ensures the embedded document loads and covers the API.
func TestSchema(t *testing.T) {
	t.Parallel()

	doc, err := fakeapi.Schema()
	require.NoError(t, err)

	for _, path := range []string{"/access_info", "/token", "/user", "/jobs", "/jobs/{id}", "/files/"} {
		require.NotNil(t, doc.Paths.Value(path), path)
	}
}

// TestRejectsInvalidRequests ensures documented routes are validated.
func TestRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	_, api := newServer(t)

	err := api.DoJSON(t.Context(), http.MethodPost, "/jobs", map[string]any{"job_name": "missing fields"}, nil)
	require.True(t, client.IsStatus(err, http.StatusBadRequest))

	err = api.DoJSON(t.Context(), http.MethodPost, "/user", map[string]any{"email": "user@example.com"}, nil)
	require.True(t, client.IsStatus(err, http.StatusBadRequest))

	_, err = api.Do(t.Context(), client.Request{Method: http.MethodGet, Path: "/files/", Query: map[string][]string{"recursive": {"maybe"}}})
	require.True(t, client.IsStatus(err, http.StatusBadRequest))
}

// TestStorageTickets ensures storage only honours unused, unauthenticated
// tickets.
func TestStorageTickets(t *testing.T) {
	t.Parallel()

	server, api := newServer(t)

	store := files.New(api)

	require.NoError(t, store.UploadReader(t.Context(), "config/exp_1/param.yaml", "param.yaml", strings.NewReader("a")))

	descriptor, err := store.Descriptor(t.Context(), http.MethodGet, "config/exp_1/param.yaml")
	require.NoError(t, err)

	replay := func() error {
		req, err := descriptor.NewRequest(t.Context(), nil, "")
		require.NoError(t, err)

		_, err = api.Send(t.Context(), req)

		return err
	}

	req, err := descriptor.NewRequest(t.Context(), nil, "")
	require.NoError(t, err)

	req.Header.Set("Authorization", "Bearer test-token")

	_, err = api.Send(t.Context(), req)
	require.True(t, client.IsStatus(err, http.StatusBadRequest))

	require.NoError(t, replay())
	require.True(t, client.IsStatus(replay(), http.StatusForbidden))

	require.Equal(t, []string{"config/exp_1/param.yaml"}, server.Paths())
}
