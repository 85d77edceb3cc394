package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type syncOptions struct {
	maxRecords int
	enrich     bool
	asJSON     bool
}

func newSyncCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Embed deals from Postgres and upsert them into the vector index",
		Long: `Reads every deal from the configured Postgres table in id order,
optionally infers business strategy and growth stage, embeds the chunk text
and upserts the records into the vector index. Runs are idempotent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-records") {
				cfg.Sync.MaxRecords = opts.maxRecords
			}
			if cmd.Flags().Changed("enrich") {
				cfg.Sync.Enrich = opts.enrich
			}

			a, logger, err := global.openWith(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer a.Close()

			svc, err := a.SyncService(ctx)
			if err != nil {
				return err
			}

			rep, err := svc.Run(ctx)
			if err != nil {
				logger.Error("Sync failed", zap.String("run_id", rep.RunID), zap.Error(err))
				return fmt.Errorf("sync failed: %w", err)
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			cmd.Printf("run %s: read %d, upserted %d, skipped %d, enriched %d, tokens %d in %s\n",
				rep.RunID, rep.Read, rep.Upserted, rep.Skipped, rep.Enriched, rep.Tokens, rep.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.maxRecords, "max-records", 0, "stop after this many deals (0 = all)")
	cmd.Flags().BoolVar(&opts.enrich, "enrich", false, "infer business strategy and growth stage before embedding")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the run report as JSON")
	return cmd
}
