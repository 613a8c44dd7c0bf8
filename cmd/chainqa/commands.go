// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainqa/pkg/logging"
	"github.com/AleutianAI/chainqa/services/chainqa/config"
)

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "chainqa",
		Short: "Resolve command chains against a knowledge graph",
		Long: `chainqa turns a chain such as

  a film ; forwardProperty director ; Tim Burton

into navigation steps against a knowledge graph and reports the SPARQL
query of the place it reaches.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML or JSON config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (default warn, info for serve)")

	root.AddCommand(
		newParseCmd(),
		newResolveCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and the logger before any subcommand.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	switch {
	case c.logLevel != "":
		lv, err := logging.ParseLevel(c.logLevel)
		if err != nil {
			return err
		}
		cfg.Log.Level = lv
	case cmd.Name() != "serve" && cfg.Log.Level < logging.LevelWarn:
		cfg.Log.Level = logging.LevelWarn
	}
	cfg.Log.Output = cmd.ErrOrStderr()

	c.cfg = cfg
	c.logger = logging.New(cfg.Log)
	return nil
}
