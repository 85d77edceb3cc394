package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/usecase/rollup"
)

type searchOptions struct {
	industry   string
	location   string
	revenueMin float64
	revenueMax float64
	marginMin  float64
	marginMax  float64
	strategies []string
	k          int
	summary    bool
	asJSON     bool
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find rollup candidates for the given criteria",
		Example: `  dealscoutctl search --industry "HVAC services" --location Texas --revenue-min 2e6 --revenue-max 8e6
  dealscoutctl search --strategy add_on --strategy consolidation --k 10 --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			a, logger, err := global.openWith(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer a.Close()

			out, err := a.RollupService().FindCandidates(ctx, opts.criteria(cmd), rollup.Options{
				K:       opts.k,
				Summary: opts.summary,
			})
			if err != nil {
				return err
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printOutcome(cmd, out)
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

func (o *searchOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.industry, "industry", "", "target industry")
	f.StringVar(&o.location, "location", "", "target geography")
	f.Float64Var(&o.revenueMin, "revenue-min", 0, "minimum revenue")
	f.Float64Var(&o.revenueMax, "revenue-max", 0, "maximum revenue")
	f.Float64Var(&o.marginMin, "margin-min", 0, "minimum EBITDA margin, percent")
	f.Float64Var(&o.marginMax, "margin-max", 0, "maximum EBITDA margin, percent")
	f.StringArrayVar(&o.strategies, "strategy", nil, "business strategy (repeatable)")
	f.IntVar(&o.k, "k", 0, "number of candidates (0 = configured default)")
	f.BoolVar(&o.summary, "summary", false, "generate a narrative summary")
	f.BoolVar(&o.asJSON, "json", false, "print the outcome as JSON")
}

// criteria sets only the bounds the user passed explicitly.
func (o *searchOptions) criteria(cmd *cobra.Command) candidate.Criteria {
	var c candidate.Criteria
	changed := cmd.Flags().Changed

	if changed("industry") {
		c.Industry = &o.industry
	}
	if changed("location") {
		c.Location = &o.location
	}
	if changed("revenue-min") {
		c.RevenueMin = &o.revenueMin
	}
	if changed("revenue-max") {
		c.RevenueMax = &o.revenueMax
	}
	if changed("margin-min") {
		c.EBITDAMarginMin = &o.marginMin
	}
	if changed("margin-max") {
		c.EBITDAMarginMax = &o.marginMax
	}
	for _, s := range o.strategies {
		c.BusinessStrategy = append(c.BusinessStrategy, candidate.Strategy(s))
	}
	return c
}

func printOutcome(cmd *cobra.Command, out rollup.Outcome) error {
	if out.QueryText != "" {
		cmd.Printf("query: %s\n", out.QueryText)
	}
	if len(out.Candidates) == 0 {
		cmd.Println("no candidates")
	} else {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSCORE\tTITLE\tINDUSTRY\tLOCATION\tREVENUE\tMARGIN")
		for _, r := range out.Candidates {
			rec := r.Record
			fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Score, dash(rec.Title), dash(rec.Industry), dash(rec.CompanyLocation),
				num(rec.Revenue, ""), num(rec.EBITDAMargin, "%"))
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
	if out.Summary != "" {
		cmd.Printf("\n%s\n", out.Summary)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func num(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}
