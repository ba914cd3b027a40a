package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radieske/matka-settlement/internal/catalog"
	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/settlement"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply the game type and market catalog",
		Long: `Apply writes the game types and creates or updates markets by name.
Without --catalog (or CATALOG_FILE) the built-in catalog is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := catalog.LoadOrDefault(file)
			if err != nil {
				return err
			}
			sum, err := catalog.Apply(cmd.Context(), a.store, c)
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		},
	}
	cmd.Flags().StringVar(&file, "catalog", a.cfg.CatalogFile, "TOML catalog file")
	return cmd
}

func (a *app) marketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List markets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := a.engine.ListMarkets(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, ms)
		},
	}
}

func (a *app) declareCmd() *cobra.Command {
	var (
		market, session, pattern, day string
		digit                         int
	)
	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare a session result and settle its bids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.market(cmd, market)
			if err != nil {
				return err
			}
			s, err := domain.ParseSession(session)
			if err != nil {
				return err
			}
			d := settlement.Declaration{MarketID: m.ID, Session: s, Pattern: pattern, Day: day}
			if cmd.Flags().Changed("digit") {
				d.Digit = &digit
			}
			out, err := a.engine.DeclareResult(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&market, "market", "", "market id or name")
	f.StringVar(&session, "session", "", "open or close")
	f.StringVar(&pattern, "pattern", "", "three digit pattern")
	f.IntVar(&digit, "digit", 0, "session digit (default: pattern sum mod 10)")
	f.StringVar(&day, "day", "", "market day YYYY-MM-DD (default: current market day)")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}

func (a *app) revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke RESULT_ID",
		Short: "Revoke the latest declared session of a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.engine.RevokeResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

// dayCmd monta os comandos que agem sobre um mercado num dia.
func (a *app) dayCmd(use, short string, run func(cmd *cobra.Command, m domain.Market, day string) (any, error)) *cobra.Command {
	var market, day string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.market(cmd, market)
			if err != nil {
				return err
			}
			out, err := run(cmd, m, day)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "market id or name")
	cmd.Flags().StringVar(&day, "day", "", "market day YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func (a *app) reprocessCmd() *cobra.Command {
	return a.dayCmd("reprocess", "Settle pending bids against an existing result",
		func(cmd *cobra.Command, m domain.Market, day string) (any, error) {
			return a.engine.ReprocessResults(cmd.Context(), m.ID, day)
		})
}

func (a *app) refundCmd() *cobra.Command {
	return a.dayCmd("refund", "Refund pending bids of a cancelled market day",
		func(cmd *cobra.Command, m domain.Market, day string) (any, error) {
			return a.engine.RefundMarket(cmd.Context(), m.ID, day)
		})
}

func (a *app) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit OWNER_ID...",
		Short: "Compare wallet balances with their ledgers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := ledger.New(a.store, a.log)
			reports := make([]ledger.AuditReport, 0, len(args))
			inconsistent := 0
			for _, owner := range args {
				rep, err := l.Audit(cmd.Context(), owner)
				if err != nil {
					return fmt.Errorf("audit %s: %w", owner, err)
				}
				if !rep.Consistent {
					inconsistent++
				}
				reports = append(reports, rep)
			}
			if err := printJSON(cmd, reports); err != nil {
				return err
			}
			if inconsistent > 0 {
				return fmt.Errorf("%d wallet(s) inconsistent", inconsistent)
			}
			return nil
		},
	}
}
