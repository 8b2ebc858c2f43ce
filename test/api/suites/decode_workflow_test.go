//go:build integration

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

//nolint:testpackage,revive // test package in suites is standard for these tests, dot imports standard for Ginkgo
package suites

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/decode-cloud/e2e/pkg/workflow"
	"github.com/decode-cloud/e2e/test/api"
)

var _ = Describe("DECODE Training Workflow", Ordered, func() {
	var scenario *workflow.Scenario

	BeforeAll(func() {
		s := api.OpenSession(ctx, config)
		scenario = api.NewScenario(s, api.DecodeWorkflow(s))
	})

	Context("When a training job is run end to end", func() {
		It("should find no files stored for the experiment", func() {
			api.RunStep(ctx, scenario, workflow.StepPrecondition)
		})

		It("should upload the config and calibration inputs", func() {
			api.RunStep(ctx, scenario, workflow.StepUpload)
		})

		It("should list exactly the uploaded inputs", func() {
			api.RunStep(ctx, scenario, workflow.StepList)
		})

		It("should submit the job", func() {
			api.RunStep(ctx, scenario, workflow.StepSubmit)
		})

		It("should report the job as queued", func() {
			api.RunStep(ctx, scenario, workflow.StepQueued)
		})

		It("should reach preprocessing", func() {
			api.RunStep(ctx, scenario, workflow.StepPreprocessing)
		})

		It("should reach running", func() {
			api.RunStep(ctx, scenario, workflow.StepRunning)
		})

		It("should reach postprocessing", func() {
			api.RunStep(ctx, scenario, workflow.StepPostprocessing)
		})

		It("should reach finished", func() {
			api.RunStep(ctx, scenario, workflow.StepFinished)
		})

		It("should store the training config and a model", func() {
			api.RunStep(ctx, scenario, workflow.StepDownload)
		})

		It("should cancel the job", func() {
			api.RunStep(ctx, scenario, workflow.StepCancel)
		})
	})
})
