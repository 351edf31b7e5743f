// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/extsort/cmd/extsort/opts"
	"github.com/walteh/extsort/pkg/config"
	"github.com/walteh/extsort/pkg/copier"
	"github.com/walteh/extsort/pkg/engine"
	"github.com/walteh/extsort/pkg/log"
	"github.com/walteh/extsort/pkg/metrics"
	"github.com/walteh/extsort/pkg/sink"
	"gitlab.com/tozd/go/errors"
)

// ErrIncomplete is returned when a run finished but not every file was copied
var ErrIncomplete = errors.Base("run incomplete")

type sortFlags struct {
	poolSize        int
	include         []string
	exclude         []string
	failureLog      string
	failureDB       string
	metricsTextfile string
	metricsAddr     string
}

// NewSortCmd creates the sort command
func NewSortCmd(opts *opts.RootOpts) *cobra.Command {
	flags := &sortFlags{}

	cmd := &cobra.Command{
		Use:   "sort SOURCE DEST",
		Short: "Copy every file under SOURCE into DEST/<extension>/",
		Long: `Sort walks SOURCE recursively and copies each regular file into a
subdirectory of DEST named after its lower-cased extension. Files without an
extension go to DEST/no_extension. Copies run on a bounded worker pool.

Failed copies are logged, appended to the failure log, and make the command
exit non-zero. The source tree is never modified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig(cmd.Context())
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runSort(cmd.Context(), opts, cfg, flags.metricsAddr, args[0], args[1])
		},
	}

	cmd.Flags().IntVarP(&flags.poolSize, "pool-size", "p", config.DefaultPoolSize, "maximum number of concurrent copies")
	cmd.Flags().StringArrayVar(&flags.include, "include", nil, "only sort files matching this glob (repeatable)")
	cmd.Flags().StringArrayVar(&flags.exclude, "exclude", nil, "skip files and directories matching this glob (repeatable)")
	cmd.Flags().StringVar(&flags.failureLog, "failure-log", "", "append failed copies to this JSON lines file")
	cmd.Flags().StringVar(&flags.failureDB, "failure-db", "", "record failed copies in this sqlite database")
	cmd.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file after the run")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address at /metrics while the run is active")

	return cmd
}

// apply overrides cfg with the flags that were set on the command line
func (f *sortFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("pool-size") {
		if f.poolSize <= 0 {
			return errors.Errorf("--pool-size must be positive, got %d", f.poolSize)
		}
		cfg.PoolSize = f.poolSize
	}
	cfg.Include = append(cfg.Include, f.include...)
	cfg.Exclude = append(cfg.Exclude, f.exclude...)
	if f.failureLog != "" {
		cfg.FailureLog = f.failureLog
	}
	if f.failureDB != "" {
		cfg.FailureDB = f.failureDB
	}
	if f.metricsTextfile != "" {
		cfg.MetricsTextfile = f.metricsTextfile
	}

	if err := cfg.Validate(); err != nil {
		return errors.Errorf("validating options: %w", err)
	}
	return nil
}

// 🚀 runSort wires the sinks, metrics and console around one engine run
func runSort(ctx context.Context, opts *opts.RootOpts, cfg *config.Config, metricsAddr, src, dst string) error {
	logger := zerolog.Ctx(ctx)
	if !opts.Debug && !opts.Quiet {
		l := logger.Level(cfg.Level())
		logger = &l
		ctx = logger.WithContext(ctx)
	}

	runID := uuid.NewString()

	sinks, closeSinks, err := openSinks(ctx, cfg, runID)
	if err != nil {
		return err
	}
	defer closeSinks()

	collector := metrics.NewCollector()
	console := log.New(opts.Stdout(), *logger).Quiet(opts.Quiet)

	if metricsAddr != "" {
		addr, stop, err := collector.Serve(ctx, metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("stopping metrics server")
			}
		}()
		console.Infof("serving metrics on http://%s/metrics", addr)
	}

	console.Header("sorting files by extension")
	console.StartRunOperation(ctx, log.RunOperation{
		ID:          runID,
		Source:      src,
		Destination: dst,
		PoolSize:    cfg.PoolSize,
	})

	result, err := engine.Run(ctx, engine.Options{
		Source:      src,
		Destination: dst,
		PoolSize:    cfg.PoolSize,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		Sink:        sinks,
		Observers:   []copier.Observer{collector, console},
		RunID:       runID,
	})
	if err != nil {
		console.Errorf("run aborted: %v", err)
		return errors.Errorf("sorting %s: %w", src, err)
	}
	console.EndRunOperation(ctx)

	for _, w := range result.Warnings {
		console.Warningf("skipped %s: %v", w.Path, w.Err)
	}

	console.LogNewline()
	if err := writeSummary(opts.Stdout(), result); err != nil {
		return errors.Errorf("rendering summary: %w", err)
	}

	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			console.Warningf("writing metrics: %v", err)
		}
	}

	switch {
	case result.Interrupted:
		console.Warningf("interrupted after %d files", result.Total())
		return errors.Errorf("%w: interrupted", ErrIncomplete)
	case result.Failed > 0:
		console.Errorf("%d of %d files failed, see %s", result.Failed, result.Total(), cfg.FailureLog)
		return errors.Errorf("%w: %d of %d files failed", ErrIncomplete, result.Failed, result.Total())
	}

	console.Successf("sorted %d files into %d categories in %s", result.Succeeded, len(result.Categories), result.Duration.Round(time.Millisecond))
	return nil
}

// openSinks builds the failure fan-out: zerolog, the JSON lines log and the optional sqlite journal
func openSinks(ctx context.Context, cfg *config.Config, runID string) (sink.FailureSink, func(), error) {
	file, err := sink.OpenFile(cfg.FailureLog)
	if err != nil {
		return nil, nil, errors.Errorf("opening failure log: %w", err)
	}

	closers := []io.Closer{file}
	sinks := []sink.FailureSink{sink.Log, file}

	if cfg.FailureDB != "" {
		db, err := sink.OpenSQLite(ctx, cfg.FailureDB, runID)
		if err != nil {
			_ = file.Close()
			return nil, nil, errors.Errorf("opening failure database: %w", err)
		}
		closers = append(closers, db)
		sinks = append(sinks, db)
	}

	return sink.Multi(sinks...), func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("closing failure sink")
			}
		}
	}, nil
}

// 📊 writeSummary renders one row per category plus totals
func writeSummary(w io.Writer, result *engine.RunResult) error {
	categories := slices.Sorted(maps.Keys(result.Categories))

	data := pterm.TableData{{"category", "files"}}
	for _, c := range categories {
		data = append(data, []string{c.String(), fmt.Sprint(result.Categories[c])})
	}
	data = append(data,
		[]string{"succeeded", fmt.Sprint(result.Succeeded)},
		[]string{"failed", fmt.Sprint(result.Failed)},
	)

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
