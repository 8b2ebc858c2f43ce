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

// Package decode runs the DECODE training application through the job
// lifecycle.  Inputs come from the published example assets, shortened so
// a training job finishes within minutes.
package decode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/decode-cloud/e2e/pkg/client"
	"github.com/decode-cloud/e2e/pkg/files"
	"github.com/decode-cloud/e2e/pkg/jobs"
	"github.com/decode-cloud/e2e/pkg/workflow"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// DefaultAssetURL is a zip of the example training inputs.
	DefaultAssetURL = "https://oc.embl.de/index.php/s/Abn8nSMlOqvKeHC/download"

	// AssetBaseDir is the directory within the zip holding the inputs.
	AssetBaseDir = "decode_cloud_train_experimental"

	ConfigFile      = "param_run_in.yaml"
	CalibrationFile = "spline_calibration_3dcal.mat"

	// ModelExtension identifies trained model artifacts.
	ModelExtension = ".pt"
)

// Application is the DECODE training entrypoint.
func Application() jobs.Application {
	return jobs.Application{
		Application: "decode",
		Version:     "v_0_10_1",
		Entrypoint:  "train",
	}
}

type Option func(*Workflow)

// WithAssetURL fetches the example zip from url.
func WithAssetURL(url string) Option {
	return func(w *Workflow) {
		w.assetURL = url
	}
}

// WithAssetDir reads the inputs from a local directory instead of
// fetching them.
func WithAssetDir(dir string) Option {
	return func(w *Workflow) {
		w.assetDir = dir
	}
}

// WithFetcher sets the client example assets are fetched with.
func WithFetcher(fetcher *client.Client) Option {
	return func(w *Workflow) {
		w.fetcher = fetcher
	}
}

// Workflow is the DECODE training scenario.
type Workflow struct {
	device   string
	assetURL string
	assetDir string
	fetcher  *client.Client
}

var _ workflow.Workflow = &Workflow{}

// New returns a workflow training on device, "cpu" or "cuda".
func New(device string, opts ...Option) *Workflow {
	w := &Workflow{
		device:   device,
		assetURL: DefaultAssetURL,
	}

	for _, o := range opts {
		o(w)
	}

	if w.fetcher == nil {
		w.fetcher = client.New(client.Options{})
	}

	return w
}

func (*Workflow) Name() string {
	return "decode"
}

func (*Workflow) Application() jobs.Application {
	return Application()
}

func (w *Workflow) InputFiles(ctx context.Context, workDir string) ([]files.ApplicationFile, error) {
	baseDir, err := w.assets(ctx, workDir)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(baseDir, ConfigFile)
	calibrationPath := filepath.Join(baseDir, CalibrationFile)

	if _, err := os.Stat(calibrationPath); err != nil {
		return nil, fmt.Errorf("calibration input: %w", err)
	}

	if err := ShortenTraining(configPath, w.device); err != nil {
		return nil, err
	}

	log.FromContext(ctx).Info("prepared inputs", "dir", baseDir, "device", w.device)

	return []files.ApplicationFile{
		{Kind: files.KindConfig, Path: configPath},
		{Kind: files.KindData, Path: calibrationPath},
	}, nil
}

// assets places the example inputs below workDir and returns their directory.
func (w *Workflow) assets(ctx context.Context, workDir string) (string, error) {
	if w.assetDir != "" {
		for _, name := range []string{ConfigFile, CalibrationFile} {
			if err := copyFile(filepath.Join(w.assetDir, name), filepath.Join(workDir, name)); err != nil {
				return "", err
			}
		}

		return workDir, nil
	}

	if err := fetchArchive(ctx, w.fetcher, w.assetURL, workDir); err != nil {
		return "", err
	}

	return filepath.Join(workDir, AssetBaseDir), nil
}

// VerifyDownload checks the job stored the configuration it trained with
// and at least one model.
func (w *Workflow) VerifyDownload(ctx context.Context, run *workflow.Run, outputs workflow.Outputs) error {
	entries, err := outputs.List(ctx, path.Join(string(files.KindArtifact), run.JobName)+"/", true)
	if err != nil {
		return err
	}

	paths := files.Paths(entries)

	var configPath string

	var models []string

	for _, p := range paths {
		if configPath == "" && strings.Contains(p, ConfigFile) {
			configPath = p
		}

		if path.Ext(p) == ModelExtension {
			models = append(models, p)
		}
	}

	if configPath == "" {
		return workflow.Assertionf("no %s among job artifacts %v", ConfigFile, paths)
	}

	downloaded, err := outputs.Download(ctx, configPath)
	if err != nil {
		return err
	}

	input, ok := run.Input(files.KindConfig)
	if !ok {
		return workflow.Assertionf("no config input was uploaded")
	}

	uploaded, err := os.ReadFile(input.Path)
	if err != nil {
		return fmt.Errorf("reading uploaded config: %w", err)
	}

	want, err := CameraBaseline(uploaded)
	if err != nil {
		return fmt.Errorf("uploaded config: %w", err)
	}

	got, err := CameraBaseline(downloaded)
	if err != nil {
		return workflow.Assertionf("downloaded config %s: %v", configPath, err)
	}

	if !cmp.Equal(got, want, numeric) {
		return workflow.Assertionf("Camera.baseline is %v in %s, uploaded %v", got, configPath, want)
	}

	if len(models) == 0 {
		return workflow.Assertionf("no %s model among job artifacts %v", ModelExtension, paths)
	}

	log.FromContext(ctx).Info("verified outputs", "config", configPath, "models", models)

	return nil
}

// numeric compares decoded numbers by value, a re-serialised 100 equals
// 100.0.
//
//nolint:gochecknoglobals
var numeric = cmp.FilterValues(func(x, y any) bool {
	_, xok := number(x)
	_, yok := number(y)

	return xok && yok
}, cmp.Comparer(func(x, y any) bool {
	a, _ := number(x)
	b, _ := number(y)

	return a == b
}))

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}

	return 0, false
}

// CameraBaseline extracts Camera.baseline from a training configuration.
func CameraBaseline(content []byte) (any, error) {
	var config struct {
		Camera map[string]any `yaml:"Camera"`
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	baseline, ok := config.Camera["baseline"]
	if !ok {
		return nil, errors.New("baseline missing from Camera section")
	}

	return baseline, nil
}
