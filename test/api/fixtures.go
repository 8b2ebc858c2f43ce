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

//nolint:revive,staticcheck // dot imports are standard for Ginkgo/Gomega test code
package api

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/decode-cloud/e2e/pkg/session"
	"github.com/decode-cloud/e2e/pkg/workflow"
	"github.com/decode-cloud/e2e/pkg/workflow/decode"

	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Context returns a context carrying a logger that writes to the Ginkgo
// output, so logs are attached to the spec that produced them.
func Context() context.Context {
	logger := zap.New(zap.WriteTo(ginkgo.GinkgoWriter), zap.UseDevMode(true))

	log.SetLogger(logger)

	return log.IntoContext(context.Background(), logger)
}

// OpenSession opens a session and schedules it to be closed, stopping any
// local stack, whether the specs pass or fail.
func OpenSession(ctx context.Context, config *TestConfig, opts ...session.Option) *session.Session {
	s, err := session.Open(ctx, config.Options, config.Config, opts...)
	Expect(err).NotTo(HaveOccurred())

	ginkgo.GinkgoWriter.Printf("Opened session against %s (%s)\n", s.Environment.Name, s.Environment.APIBaseURL)

	ginkgo.DeferCleanup(func(ctx context.Context) {
		ginkgo.GinkgoWriter.Printf("Closing session against %s\n", s.Environment.Name)

		if err := s.Close(ctx); err != nil {
			ginkgo.GinkgoWriter.Printf("Warning: failed to close session: %v\n", err)
		}
	}, ginkgo.NodeTimeout(5*time.Minute))

	return s
}

// DecodeWorkflow returns the DECODE scenario configured from the session.
func DecodeWorkflow(s *session.Session) *decode.Workflow {
	var opts []decode.Option

	if s.Options.AssetURL != "" {
		opts = append(opts, decode.WithAssetURL(s.Options.AssetURL))
	}

	if s.Options.AssetDir != "" {
		opts = append(opts, decode.WithAssetDir(s.Options.AssetDir))
	}

	return decode.New(s.Device(), opts...)
}

// NewScenario returns a scenario that, when the options ask for it,
// cancels its job if the specs stop before the cancel step.
func NewScenario(s *session.Session, wf workflow.Workflow, opts ...workflow.Option) *workflow.Scenario {
	scenario := s.Scenario(wf, opts...)

	ginkgo.GinkgoWriter.Printf("Experiment %s, job %s\n", scenario.State().ExperimentID, scenario.State().JobName)

	if s.Options.CancelOnFailure {
		ginkgo.DeferCleanup(func(ctx context.Context) {
			if err := scenario.CancelPending(ctx); err != nil {
				ginkgo.GinkgoWriter.Printf("Warning: failed to cancel job %s: %v\n", scenario.State().JobID, err)
			}
		})
	}

	return scenario
}

// RunStep runs a single scenario step as a spec assertion.
func RunStep(ctx context.Context, scenario *workflow.Scenario, step string) {
	start := time.Now()

	err := scenario.RunStep(ctx, step)

	ginkgo.GinkgoWriter.Printf("Step %s took %s\n", step, time.Since(start).Round(time.Millisecond))

	Expect(err).NotTo(HaveOccurred())
}
