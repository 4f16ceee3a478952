package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/ordermeta"
	"github.com/ManuelReschke/PriceSync/internal/pkg/snapshot"
)

type snapshotStore interface {
	Fetch(ctx context.Context, key string) ([]models.PriceListRow, error)
	Archive(ctx context.Context, rows []models.PriceListRow) (string, error)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func syncCmd() *cobra.Command {
	var (
		s3Key   string
		dryRun  bool
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "sync [snapshot.json|-]",
		Short: "Reconcile the catalog against a snapshot file, stdin or an S3 object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 0) == (s3Key == "") {
				return errors.New("pass either a snapshot file or --s3-key")
			}

			var (
				rows  []models.PriceListRow
				store snapshotStore
				err   error
			)
			if s3Key != "" || archive {
				if store, err = openSnapshots(ctx); err != nil {
					return err
				}
			}
			if s3Key != "" {
				rows, err = store.Fetch(ctx, s3Key)
			} else {
				rows, err = readSnapshot(cmd, args[0])
			}
			if err != nil {
				return err
			}

			paths, err := openPaths(ctx)
			if err != nil {
				return err
			}
			reconciler := catalog.NewReconciler(paths.Active())

			var res *catalog.Result
			if dryRun {
				res, err = reconciler.Preview(ctx, rows)
			} else {
				res, err = reconciler.Reconcile(ctx, rows)
			}
			if err != nil {
				return err
			}

			out := map[string]any{
				"dryRun":    dryRun,
				"updatedAt": res.UpdatedAt,
				"count":     res.Count,
				"stale":     res.Stale,
				"deleted":   res.Cleanup.Deleted,
			}
			if !res.Cleanup.OK() {
				out["cleanupError"] = res.Cleanup.Err.Error()
			}
			if archive && !dryRun && s3Key == "" {
				key, err := store.Archive(ctx, rows)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "archive failed: %v\n", err)
				} else {
					out["archivedKey"] = key
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&s3Key, "s3-key", "", "Fetch the snapshot from this S3 object key")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&archive, "archive", false, "Archive the applied snapshot to S3")

	return cmd
}

func readSnapshot(cmd *cobra.Command, path string) ([]models.PriceListRow, error) {
	if path == "-" {
		return snapshot.Decode(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return snapshot.Decode(f)
}

func resolveCmd() *cobra.Command {
	var q catalog.Request
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the price for one catalog row",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := openPaths(cmd.Context())
			if err != nil {
				return err
			}
			res, err := catalog.NewResolver(paths).Resolve(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"price":      res.Price.StringFixed(2),
				"path":       res.Path,
				"documentId": res.DocumentID,
			})
		},
	}

	cmd.Flags().StringVarP(&q.Segment, "segment", "s", "", "Segment (Personal, Business, Funnel Level)")
	cmd.Flags().StringVarP(&q.BillingCycle, "cycle", "c", "", "Billing cycle (Monthly, Yearly)")
	cmd.Flags().StringVarP(&q.PlanName, "plan", "p", "", "Plan name")
	cmd.Flags().StringVar(&q.FunnelLevel, "funnel-level", "", "Funnel level (Funnel Level segment)")
	cmd.Flags().StringVar(&q.LeadGenName, "lead-gen", "", "Lead-gen name (Funnel Level segment)")

	return cmd
}

func metaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "Show when the catalog was last reconciled",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := openPaths(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := catalog.NewReconciler(paths.Active()).Meta(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"updatedAt": meta.UpdatedAt,
				"count":     meta.Count,
				"paths":     paths.String(),
			})
		},
	}
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <custom_id>",
		Short: "Decode an order's custom_id metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), ordermeta.Decode(args[0]))
		},
	}
}

func encodeCmd() *cobra.Command {
	var (
		q      catalog.Request
		amount string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode order metadata as it would be sent in custom_id",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ordermeta.Context{
				Segment:      q.Segment,
				BillingCycle: q.BillingCycle,
				Identifier:   ordermeta.Identifier(q.Segment, q.PlanName, q.FunnelLevel, q.LeadGenName),
			}
			if amount != "" {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				c.Amount = &d
			}
			encoded, err := ordermeta.Encode(c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return err
		},
	}

	cmd.Flags().StringVarP(&q.Segment, "segment", "s", "", "Segment")
	cmd.Flags().StringVarP(&q.BillingCycle, "cycle", "c", "", "Billing cycle")
	cmd.Flags().StringVarP(&q.PlanName, "plan", "p", "", "Plan name")
	cmd.Flags().StringVar(&q.FunnelLevel, "funnel-level", "", "Funnel level")
	cmd.Flags().StringVar(&q.LeadGenName, "lead-gen", "", "Lead-gen name")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount")

	return cmd
}
