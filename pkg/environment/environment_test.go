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

package environment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decode-cloud/e2e/pkg/environment"
	"github.com/decode-cloud/e2e/pkg/options"
)

// TestResolveSelection ensures exactly one environment must be selected.
func TestResolveSelection(t *testing.T) {
	t.Parallel()

	invalid := []options.Options{
		{},
		{Local: true, Dev: true},
		{Local: true, Prod: true},
		{Dev: true, Prod: true},
		{Local: true, Dev: true, Prod: true},
	}

	for _, o := range invalid {
		_, err := environment.Resolve(&o)
		require.ErrorIs(t, err, environment.ErrConfiguration, "%+v", o)
	}

	valid := []struct {
		options options.Options
		name    environment.Name
	}{
		{options: options.Options{Local: true}, name: environment.Local},
		{options: options.Options{Dev: true}, name: environment.Dev},
		{options: options.Options{Prod: true}, name: environment.Prod},
	}

	for _, tc := range valid {
		env, err := environment.Resolve(&tc.options)
		require.NoError(t, err)
		require.Equal(t, tc.name, env.Name)
		require.NotEmpty(t, env.APIBaseURL)
		require.NotEmpty(t, env.WorkerAPIBaseURL)
	}
}

// TestResolveAPIURL ensures API_URL overrides only the user facing URL.
func TestResolveAPIURL(t *testing.T) {
	t.Parallel()

	o := &options.Options{Local: true}

	env, err := environment.Resolve(o, environment.WithAPIURL("http://127.0.0.1:9000/"))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", env.APIBaseURL)
	require.Equal(t, "http://localhost:8001", env.WorkerAPIBaseURL)

	env, err = environment.Resolve(o, environment.WithAPIURL(""))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", env.APIBaseURL)
}

// TestResolveIsolation ensures resolved environments do not share state.
func TestResolveIsolation(t *testing.T) {
	t.Parallel()

	o := &options.Options{Dev: true}

	env, err := environment.Resolve(o, environment.WithAPIURL("http://override"))
	require.NoError(t, err)
	require.Equal(t, "http://override", env.APIBaseURL)

	env, err = environment.Resolve(o)
	require.NoError(t, err)
	require.Equal(t, "https://dev.api.decode.arthur-jaques.de", env.APIBaseURL)
}

// TestValidateModifiers ensures unsupported modifier combinations fail.
func TestValidateModifiers(t *testing.T) {
	t.Parallel()

	local := &environment.Environment{Name: environment.Local}
	dev := &environment.Environment{Name: environment.Dev}

	require.ErrorIs(t, environment.ValidateModifiers(local, &options.Options{Local: true, Cloud: true}), environment.ErrConfiguration)
	require.NoError(t, environment.ValidateModifiers(dev, &options.Options{Dev: true, Cloud: true}))
	require.NoError(t, environment.ValidateModifiers(local, &options.Options{Local: true}))

	err := environment.ValidateModifiers(dev, &options.Options{Dev: true, GPU: true})
	require.ErrorIs(t, err, environment.ErrGPUNotImplemented)
	require.ErrorIs(t, err, environment.ErrConfiguration)
}

// TestJobTarget ensures the worker pool follows the cloud modifier.
func TestJobTarget(t *testing.T) {
	t.Parallel()

	env := &environment.Environment{Name: environment.Dev}

	require.Equal(t, environment.TargetCloud, env.JobTarget(true))
	require.Equal(t, environment.TargetLocal, env.JobTarget(false))
}
