package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/a2n2k3p4/basket-payments/config"
	"github.com/a2n2k3p4/basket-payments/fees"
	"github.com/a2n2k3p4/basket-payments/models"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func feesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Manage the commission rate table",
	}
	cmd.AddCommand(feesSeedCmd())
	return cmd
}

func feesSeedCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in commission rates into payment_fees",
		Long: `Upsert the built-in commission rates into payment_fees.

Existing rows for the same method and currency are overwritten, so the
command can be re-run after changing the defaults. Run the server with
FEE_SOURCE=db to read rates from the table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(&models.PaymentFee{}); err != nil {
				return fmt.Errorf("migrate payment_fees: %w", err)
			}

			rates := fees.DefaultRates()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := fees.Seed(ctx, db, strings.ToLower(method), rates); err != nil {
				return err
			}
			fmt.Printf("seeded %d %s rates\n", len(rates), method)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", fees.MethodCard, "payment method the rates apply to")
	return cmd
}
