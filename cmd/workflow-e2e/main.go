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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/decode-cloud/e2e/pkg/config"
	"github.com/decode-cloud/e2e/pkg/constants"
	"github.com/decode-cloud/e2e/pkg/options"
	"github.com/decode-cloud/e2e/pkg/session"
	"github.com/decode-cloud/e2e/pkg/workflow"
	"github.com/decode-cloud/e2e/pkg/workflow/decode"

	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

func newRootCommand() *cobra.Command {
	var (
		o       options.Options
		logging zap.Options
	)

	cmd := &cobra.Command{
		Use:           constants.Application,
		Short:         "Run the DECODE training workflow against a job API deployment",
		Version:       constants.VersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.SetLogger(zap.New(zap.UseFlagOptions(&logging)))

			return run(cmd.Context(), &o)
		},
	}

	o.AddFlags(cmd.Flags())

	goflags := flag.NewFlagSet("logging", flag.ContinueOnError)
	logging.BindFlags(goflags)
	cmd.Flags().AddGoFlagSet(goflags)

	return cmd
}

func run(ctx context.Context, o *options.Options) error {
	logger := log.Log.WithName("init")
	logger.Info("workflow starting", "application", constants.Application, "version", constants.Version, "revision", constants.Revision)

	ctx = log.IntoContext(ctx, log.Log)

	cfg, err := config.Load(o.EnvFiles...)
	if err != nil {
		return err
	}

	var decodeOptions []decode.Option

	if o.AssetURL != "" {
		decodeOptions = append(decodeOptions, decode.WithAssetURL(o.AssetURL))
	}

	if o.AssetDir != "" {
		decodeOptions = append(decodeOptions, decode.WithAssetDir(o.AssetDir))
	}

	report := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer report.Flush()

	fmt.Fprintln(report, "STEP\tRESULT\tDURATION")

	observer := func(r workflow.Result) {
		result := "ok"
		if r.Err != nil {
			result = "FAILED"
		}

		fmt.Fprintf(report, "%s\t%s\t%s\n", r.Step, result, r.Duration.Round(time.Millisecond))
	}

	return session.Run(ctx, o, cfg, func(ctx context.Context, s *session.Session) error {
		scenario := s.Scenario(decode.New(s.Device(), decodeOptions...), workflow.WithObserver(observer))

		logger.Info("running scenario", "experiment", scenario.State().ExperimentID, "job", scenario.State().JobName)

		return scenario.Run(ctx)
	})
}

func main() {
	ctx := signals.SetupSignalHandler()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		var stepErr *workflow.StepError
		if errors.As(err, &stepErr) {
			fmt.Fprintf(os.Stderr, "workflow failed at step %s: %v\n", stepErr.Step, stepErr.Err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}

		os.Exit(1)
	}
}
