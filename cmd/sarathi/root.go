// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root sarathi command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sarathi",
		Short:         "Sarathi — resilient multi-provider LLM access",
		Long:          "Sarathi routes generation requests across LLM providers with circuit-breaker health tracking and priority-ordered fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")

	root.AddCommand(
		newServeCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}
