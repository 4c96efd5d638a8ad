// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hokipoki/hokipoki/internal/app"
	"github.com/hokipoki/hokipoki/lib/hokierr"
	"github.com/hokipoki/hokipoki/lib/toolcred"
)

func runRegister(ctx context.Context, args []string, logger *slog.Logger) error {
	var toolsFlag string

	flagSet := pflag.NewFlagSet("register", pflag.ContinueOnError)
	flagSet.StringVar(&toolsFlag, "tools", "", "comma-separated list of AI CLIs to register (claude,codex,gemini)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	tools := splitTools(toolsFlag)
	if len(tools) == 0 {
		return fmt.Errorf("hokipoki-provider register: --tools is required")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	session := app.NewSession(cfg, logger)

	token, err := session.EnsureToken(ctx)
	if err != nil {
		return err
	}

	registry := toolcred.NewRegistry(cfg.HomeDir)
	store := &toolcred.Store{Vault: session.Vault}

	var acquired []toolcred.ToolCredential
	var failed []string
	for _, tool := range tools {
		cred, err := registry.Authenticate(ctx, tool)
		if err != nil {
			logger.Warn("credential acquisition failed", "tool", tool, "error", err)
			fmt.Printf("%s: %s\n", tool, hokierr.ToolRemedy(tool))
			failed = append(failed, tool)
			continue
		}
		acquired = append(acquired, *cred)
		fmt.Printf("%s: credential acquired\n", tool)
	}

	if len(acquired) == 0 {
		return fmt.Errorf("hokipoki-provider register: no tool credentials could be acquired")
	}
	if err := store.Merge(acquired...); err != nil {
		return fmt.Errorf("hokipoki-provider register: persisting credentials: %w", err)
	}

	registered := make([]string, 0, len(acquired))
	for _, cred := range acquired {
		registered = append(registered, cred.Tool)
	}
	client := session.Backend(token)
	if err := client.RegisterProviderTools(ctx, registered); err != nil {
		return fmt.Errorf("hokipoki-provider register: %w", err)
	}

	if len(failed) > 0 {
		return &app.ExitError{Code: app.ExitFailure}
	}
	return nil
}

func splitTools(flagValue string) []string {
	var tools []string
	for _, tool := range strings.Split(flagValue, ",") {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			tools = append(tools, tool)
		}
	}
	return tools
}
