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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainqa/pkg/ux"
	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/command"
)

func newParseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <chain>",
		Short: "Split and classify a command chain",
		Example: `  chainqa parse "a film ; forwardProperty director ; limit 5"
  chainqa parse --json "today ; after 2020"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain := command.Parse(strings.Join(args, " "))
			if len(chain) == 0 {
				return chainqa.ErrEmptyChain
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stepsJSON(chain))
			}
			p := ux.NewPrinter(out)
			for i, s := range chain {
				line := fmt.Sprintf("%2d  %-26s %s", i+1, s.Kind, s.Raw)
				if len(s.Args) > 0 {
					line += fmt.Sprintf("  %q", s.Args)
				}
				p.KeyValue("step", line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type stepJSON struct {
	Kind string   `json:"kind"`
	Raw  string   `json:"raw"`
	Args []string `json:"args,omitempty"`
}

func stepsJSON(chain command.Chain) []stepJSON {
	out := make([]stepJSON, len(chain))
	for i, s := range chain {
		out[i] = stepJSON{Kind: s.Kind.String(), Raw: s.Raw, Args: s.Args}
	}
	return out
}
