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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/decode-cloud/e2e/pkg/environment"
	"github.com/decode-cloud/e2e/pkg/environment/mock"
)

var (
	errUp   = errors.New("up failed")
	errDown = errors.New("down failed")
)

func local() *environment.Environment {
	return &environment.Environment{Name: environment.Local}
}

// TestComposeCommands ensures the compose file and project are passed to docker.
func TestComposeCommands(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()

	runner := mock.NewMockCommandRunner(c)

	stack := environment.NewComposeStack("docker-compose.yaml", "e2e")
	stack.Runner = runner

	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), "docker", "compose", "-f", "docker-compose.yaml", "-p", "e2e", "up", "--detach").Return(nil, nil),
		runner.EXPECT().Run(gomock.Any(), "docker", "compose", "-f", "docker-compose.yaml", "-p", "e2e", "down").Return([]byte("boom"), errDown),
	)

	require.NoError(t, stack.Up(t.Context()))

	err := stack.Down(t.Context())
	require.ErrorIs(t, err, errDown)
	require.ErrorContains(t, err, "boom")
}

// TestAcquireHosted ensures hosted environments own no stack.
func TestAcquireHosted(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()

	stack := mock.NewMockStack(c)

	managed, err := environment.Acquire(t.Context(), &environment.Environment{Name: environment.Dev}, stack, time.Hour)
	require.NoError(t, err)
	require.Nil(t, managed)
	require.NoError(t, managed.Release(t.Context()))
}

// TestAcquireLocal ensures the stack is started once and stopped once.
func TestAcquireLocal(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()

	stack := mock.NewMockStack(c)

	gomock.InOrder(
		stack.EXPECT().Up(gomock.Any()).Return(nil),
		stack.EXPECT().Down(gomock.Any()).Return(nil),
	)

	managed, err := environment.Acquire(t.Context(), local(), stack, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, managed)

	require.NoError(t, managed.Release(t.Context()))
	require.NoError(t, managed.Release(t.Context()))
}

// TestAcquireStartFailure ensures a stack that fails to start is torn down.
func TestAcquireStartFailure(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()

	stack := mock.NewMockStack(c)

	stack.EXPECT().Up(gomock.Any()).Return(errUp)
	stack.EXPECT().Down(gomock.Any()).Return(nil)

	managed, err := environment.Acquire(t.Context(), local(), stack, time.Millisecond)
	require.ErrorIs(t, err, errUp)
	require.Nil(t, managed)
}

// TestAcquireInterrupted ensures an interrupted settle period tears the
// stack down, even though the context used to start it is done.
func TestAcquireInterrupted(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()

	stack := mock.NewMockStack(c)

	ctx, cancel := context.WithCancel(t.Context())

	stack.EXPECT().Up(gomock.Any()).DoAndReturn(func(context.Context) error {
		cancel()

		return nil
	})
	stack.EXPECT().Down(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		return ctx.Err()
	})

	_, err := environment.Acquire(ctx, local(), stack, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorContains(t, err, "waiting for local stack")
	require.NotContains(t, err.Error(), "stopping local stack")
}
