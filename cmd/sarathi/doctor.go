// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarathi-ai/sarathi/internal/config"
	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check configuration and verify every configured provider API key against its backend.",
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-20s sarathi %s (%s/%s)\n", "Binary:", version, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "%-20s Go %s\n", "Platform:", runtime.Version())

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "%-20s invalid: %s\n", "Config:", err)
	} else {
		fmt.Fprintf(w, "%-20s ok\n", "Config:")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	configured := 0
	for _, name := range config.KnownProviders {
		pc, ok := cfg.Providers[name]
		if !ok || !pc.Enabled {
			continue
		}
		label := fmt.Sprintf("%-20s", "Key "+name+":")
		if pc.APIKey == "" {
			fmt.Fprintf(w, "%s not configured\n", label)
			continue
		}
		configured++
		fmt.Fprintf(w, "%s %s\n", label, checkKey(ctx, client, name, pc.APIKey))
	}

	if configured == 0 {
		return sarathierr.New(sarathierr.CodeCLICheckFailure,
			"no provider has an api key configured")
	}
	return nil
}

func checkKey(ctx context.Context, client *http.Client, name, key string) string {
	err := provider.ValidateKey(ctx, client, provider.Name(name), key)
	switch {
	case err == nil:
		return "valid"
	case sarathierr.HasCode(err, sarathierr.CodeProviderKeyInvalid):
		return "invalid (rejected by backend)"
	default:
		return fmt.Sprintf("check failed: %s", err)
	}
}
