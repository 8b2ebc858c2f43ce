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
	"maps"

	"k8s.io/utils/ptr"
)

// SpecBuilder builds job documents.
type SpecBuilder struct {
	spec Spec
}

// NewSpec starts a job document that references the inputs of one
// experiment, targets the local worker pool and leaves hardware to the
// scheduler.
func NewSpec(name, experimentID string, application Application) *SpecBuilder {
	return &SpecBuilder{
		spec: Spec{
			JobName:     name,
			Environment: "local",
			Application: application,
			Attributes: Attributes{
				FilesDown: FilesDown{
					ConfigID:    experimentID,
					DataIDs:     []string{experimentID},
					ArtifactIDs: []string{},
				},
				EnvVars: map[string]string{},
			},
		},
	}
}

// WithEnvironment sets where the job runs, "cloud" or "local".
func (b *SpecBuilder) WithEnvironment(target string) *SpecBuilder {
	b.spec.Environment = target
	return b
}

func (b *SpecBuilder) WithPriority(priority int) *SpecBuilder {
	b.spec.Priority = priority
	return b
}

// WithDataIDs replaces the data experiments the job reads.
func (b *SpecBuilder) WithDataIDs(ids ...string) *SpecBuilder {
	b.spec.Attributes.FilesDown.DataIDs = append([]string{}, ids...)
	return b
}

// WithArtifactIDs sets artifacts of earlier jobs the job reads.
func (b *SpecBuilder) WithArtifactIDs(ids ...string) *SpecBuilder {
	b.spec.Attributes.FilesDown.ArtifactIDs = append([]string{}, ids...)
	return b
}

func (b *SpecBuilder) WithEnvVar(name, value string) *SpecBuilder {
	b.spec.Attributes.EnvVars[name] = value
	return b
}

func (b *SpecBuilder) WithCPU(cores, memory int) *SpecBuilder {
	b.spec.Hardware.CPUCores = ptr.To(cores)
	b.spec.Hardware.Memory = ptr.To(memory)

	return b
}

func (b *SpecBuilder) WithGPU(model, architecture string, memory int) *SpecBuilder {
	b.spec.Hardware.GPUModel = ptr.To(model)
	b.spec.Hardware.GPUArchi = ptr.To(architecture)
	b.spec.Hardware.GPUMem = ptr.To(memory)

	return b
}

// Build returns a copy of the document, further builder calls do not
// affect it.
func (b *SpecBuilder) Build() Spec {
	spec := b.spec

	spec.Attributes.FilesDown.DataIDs = append([]string{}, b.spec.Attributes.FilesDown.DataIDs...)
	spec.Attributes.FilesDown.ArtifactIDs = append([]string{}, b.spec.Attributes.FilesDown.ArtifactIDs...)
	spec.Attributes.EnvVars = maps.Clone(b.spec.Attributes.EnvVars)

	return spec
}
