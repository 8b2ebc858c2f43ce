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

package environment

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

//go:generate mockgen -source=stack.go -destination=mock/interfaces.go -package=mock

// Stack is a locally orchestrated deployment of the services under test.
type Stack interface {
	// Up starts the stack in the background.
	Up(ctx context.Context) error
	// Down stops and removes the stack.
	Down(ctx context.Context) error
}

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

// Run executes the command returning combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	//nolint:gosec // arguments are assembled by the harness, not user input
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ComposeStack drives a docker compose project.
type ComposeStack struct {
	// File is the compose file.
	File string
	// Project optionally names the compose project.
	Project string
	// Runner executes docker, defaults to the host.
	Runner CommandRunner
}

var _ Stack = &ComposeStack{}

// NewComposeStack returns a stack for the compose file.
func NewComposeStack(file, project string) *ComposeStack {
	return &ComposeStack{
		File:    file,
		Project: project,
		Runner:  ExecRunner{},
	}
}

func (s *ComposeStack) compose(ctx context.Context, verb ...string) error {
	args := []string{"compose", "-f", s.File}

	if s.Project != "" {
		args = append(args, "-p", s.Project)
	}

	args = append(args, verb...)

	out, err := s.Runner.Run(ctx, "docker", args...)
	if err != nil {
		return fmt.Errorf("docker %v: %w: %s", args, err, string(out))
	}

	return nil
}

// Up starts the stack detached.
func (s *ComposeStack) Up(ctx context.Context) error {
	return s.compose(ctx, "up", "--detach")
}

// Down tears the stack down.
func (s *ComposeStack) Down(ctx context.Context) error {
	return s.compose(ctx, "down")
}

// ManagedStack is a started stack owned by a session.  A nil value
// represents "nothing to manage" and is safe to release.
type ManagedStack struct {
	stack Stack
	once  sync.Once
	err   error
}

// Acquire starts the stack for local environments and waits for it to
// settle.  Hosted environments own no processes and yield nil.  If the
// stack fails to start, or the wait is interrupted, it is brought down
// before returning.
func Acquire(ctx context.Context, env *Environment, stack Stack, settle time.Duration) (*ManagedStack, error) {
	if !env.IsLocal() {
		return nil, nil //nolint:nilnil
	}

	log := log.FromContext(ctx)

	managed := &ManagedStack{
		stack: stack,
	}

	log.Info("starting local stack", "settle", settle)

	if err := stack.Up(ctx); err != nil {
		return nil, errors.Join(
			fmt.Errorf("starting local stack: %w", err),
			managed.Release(context.WithoutCancel(ctx)),
		)
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, errors.Join(
			fmt.Errorf("waiting for local stack: %w", ctx.Err()),
			managed.Release(context.WithoutCancel(ctx)),
		)
	}

	log.Info("local stack ready")

	return managed, nil
}

// Release stops the stack, only the first call has any effect.
func (m *ManagedStack) Release(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.once.Do(func() {
		log.FromContext(ctx).Info("stopping local stack")

		if err := m.stack.Down(ctx); err != nil {
			m.err = fmt.Errorf("stopping local stack: %w", err)
		}
	})

	return m.err
}
