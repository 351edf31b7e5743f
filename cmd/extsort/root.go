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

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/extsort/cmd/extsort/commands"
	"github.com/walteh/extsort/cmd/extsort/opts"
)

// newRootCmd builds the command tree around shared options
func newRootCmd(opts *opts.RootOpts) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extsort",
		Short: "Sort a directory tree into folders by file extension",
		Long: `extsort copies every file found under a source directory into a
destination directory, grouped into one folder per lower-cased extension.
Copies run concurrently on a bounded worker pool and failures never stop
the rest of the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd, opts)
		},
	}

	addRootFlags(rootCmd, opts)

	rootCmd.AddCommand(
		commands.NewSortCmd(opts),
		commands.NewClassifyCmd(opts),
		newVersionCmd(opts),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, opts *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file path (default: .extsort.{yaml,json,hcl} in the working directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "only print the summary and errors")
}

// setupLogging configures zerolog based on flags and stores it in the command context
func setupLogging(cmd *cobra.Command, opts *opts.RootOpts) {
	level := zerolog.InfoLevel
	switch {
	case opts.Debug:
		level = zerolog.DebugLevel
	case opts.Quiet:
		level = zerolog.WarnLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	cmd.SetContext(log.WithContext(cmd.Context()))
}
