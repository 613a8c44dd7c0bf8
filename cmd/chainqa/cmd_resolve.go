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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainqa/pkg/ux"
	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/app"
	"github.com/AleutianAI/chainqa/services/chainqa/config"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
)

type resolveFlags struct {
	fixture  string
	endpoint string
	strategy string
	opts     search.Options
	asJSON   bool
	showTree bool
	failFast bool
	noCache  bool
}

func newResolveCmd(c *cli) *cobra.Command {
	var f resolveFlags
	cmd := &cobra.Command{
		Use:   "resolve <chain>",
		Short: "Resolve a command chain against a fixture graph or SPARQL endpoint",
		Example: `  chainqa resolve --fixture examples/films.yaml "a film ; forwardProperty director ; Tim Burton"
  chainqa resolve --strategy dfs --top-k 2 --tree "a film ; director"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, &f, strings.Join(args, " "))
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.fixture, "fixture", "f", "", "YAML fixture graph (overrides fixture.path)")
	fl.StringVar(&f.endpoint, "endpoint", "", "SPARQL endpoint for reference counts")
	fl.StringVarP(&f.strategy, "strategy", "s", "", "sequential, dfs or beam")
	fl.IntVarP(&f.opts.TopK, "top-k", "k", 0, "candidates tried per lexical step")
	fl.IntVarP(&f.opts.BeamWidth, "beam-width", "w", 0, "states kept per beam round")
	fl.IntVar(&f.opts.MaxStates, "max-states", 0, "state budget, 0 for unlimited")
	fl.BoolVar(&f.asJSON, "json", false, "print JSON")
	fl.BoolVar(&f.showTree, "tree", false, "print the explored state tree")
	fl.BoolVar(&f.failFast, "strict", false, "exit non-zero unless the whole chain resolved")
	fl.BoolVar(&f.noCache, "no-cache", false, "skip the reference-count cache")
	return cmd
}

// resolveOutput is the --json document.
type resolveOutput struct {
	RunID       string                  `json:"run_id"`
	Chain       string                  `json:"chain"`
	Result      *search.Result          `json:"result"`
	SPARQL      string                  `json:"sparql"`
	Permalink   string                  `json:"permalink"`
	Alterations events.QueryAlterations `json:"alterations"`
	Failure     *recovery.ChainError    `json:"failure,omitempty"`
	Tree        *search.State           `json:"tree,omitempty"`
}

func (c *cli) runResolve(cmd *cobra.Command, f *resolveFlags, raw string) error {
	cfg := c.cfg
	if f.fixture != "" {
		cfg.Fixture.Path = f.fixture
	}
	if f.endpoint != "" {
		cfg.SPARQL.Endpoint = f.endpoint
	}
	if f.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts := f.opts
	if f.strategy != "" {
		s, err := search.ParseStrategy(f.strategy)
		if err != nil {
			return err
		}
		opts.Strategy = s
	}

	logger := c.logger.Slog()
	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close", "error", cerr)
		}
	}()

	out, err := a.Resolve(cmd.Context(), raw, opts)
	var chainErr *recovery.ChainError
	if err != nil && !errors.As(err, &chainErr) {
		return err
	}
	if out == nil {
		return chainqa.ErrEmptyChain
	}

	w := cmd.OutOrStdout()
	if f.asJSON {
		doc := resolveOutput{
			RunID:       out.RunID,
			Chain:       a.Parser.Parse(raw).String(),
			Result:      out.Result,
			SPARQL:      out.SPARQL(),
			Permalink:   out.Permalink(),
			Alterations: out.Alterations,
			Failure:     chainErr,
		}
		if f.showTree {
			doc.Tree = out.Result.Root
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
	} else {
		printOutcome(ux.NewPrinter(w), out, chainErr, f.showTree)
	}

	if f.failFast && !out.Result.Complete {
		if chainErr != nil {
			return chainErr
		}
		return fmt.Errorf("chain not fully resolved, %d step(s) remaining", len(out.Result.Remaining))
	}
	return nil
}

func printOutcome(p *ux.Printer, out *app.Outcome, chainErr *recovery.ChainError, showTree bool) {
	res := out.Result
	if res.Complete {
		p.Title("Chain resolved")
	} else {
		p.Title("Chain partially resolved")
	}
	p.KeyValue("strategy", string(res.Strategy))
	p.KeyValue("score", fmt.Sprintf("%.3f", res.Score))
	p.KeyValue("permalink", out.Permalink())
	if len(res.Remaining) > 0 {
		p.KeyValue("remaining", res.Remaining.String())
	}
	if len(res.Recoveries) > 0 {
		names := make([]string, len(res.Recoveries))
		for i, a := range res.Recoveries {
			names[i] = string(a)
		}
		p.KeyValue("recoveries", strings.Join(names, ", "))
	}
	printAlterations(p, out.Alterations)
	p.Box("SPARQL", out.SPARQL())

	if chainErr != nil {
		p.Error(chainErr.Error())
	} else if res.Stats.BudgetExhausted {
		p.Warning("state budget exhausted, showing the best place found")
	}
	p.Muted(res.Stats.String())

	if showTree && res.Root != nil {
		writeTree(p, res.Root)
	}
}

func printAlterations(p *ux.Printer, alt events.QueryAlterations) {
	if alt.Limit != "" {
		p.KeyValue("limit", alt.Limit)
	}
	if alt.Offset != "" {
		p.KeyValue("offset", alt.Offset)
	}
	if alt.GroupByAction != "" {
		p.KeyValue("group by", alt.GroupByAction)
	}
	if alt.OrderByDate {
		p.KeyValue("order by date", "yes")
	}
	if len(alt.Filters) > 0 {
		p.KeyValue("filter", strings.Join(alt.Filters, " "))
	}
	for _, b := range alt.Backups {
		p.Warning(b)
	}
}

func writeTree(p *ux.Printer, root *search.State) {
	p.Box("State tree", strings.TrimRight(root.Format(), "\n"))
}
