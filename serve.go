package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/config"
	"github.com/a2n2k3p4/basket-payments/fees"
	"github.com/a2n2k3p4/basket-payments/handlers"
	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/notify"
	"github.com/a2n2k3p4/basket-payments/payments"
	"github.com/a2n2k3p4/basket-payments/pricing"
	"github.com/a2n2k3p4/basket-payments/webhook"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the Stripe webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if !skipMigrate {
				if err := db.AutoMigrate(models.All()...); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
			}

			app, err := buildApp(cfg, db)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("server: listening on %s", cfg.HTTPAddr)
				errCh <- app.Listen(cfg.HTTPAddr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Printf("server: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return app.ShutdownWithContext(shutdownCtx)
			}
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migration on startup")
	return cmd
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func rateSource(cfg *config.Config, db *gorm.DB) fees.RateSource {
	if cfg.FeeSource == "db" {
		return fees.DBRates{DB: db}
	}
	return fees.DefaultRates()
}

func buildApp(cfg *config.Config, db *gorm.DB) (*fiber.App, error) {
	l := ledger.New(db)
	basketSvc := pricing.NewService(db)
	calc := fees.NewCalculator(rateSource(cfg, db))

	providers := []payments.Provider{
		payments.NewStripeProvider(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
	}
	if cfg.PayPalEnabled() {
		pp, err := payments.NewPayPalProvider(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalMode, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
		if err != nil {
			return nil, fmt.Errorf("paypal client: %w", err)
		}
		providers = append(providers, pp)
	} else {
		log.Printf("server: PAYPAL_CLIENT_ID/PAYPAL_SECRET not set, paypal disabled")
	}
	orch := payments.NewOrchestrator(l, basketSvc, calc, cfg.DefaultCurrency, providers...)

	processor := webhook.NewProcessor(l, calc, webhook.Options{
		Secret:      cfg.StripeWebhookSecret,
		Tolerance:   cfg.WebhookTolerance,
		Deduplicate: cfg.WebhookDeduplicate,
		Notifier:    notify.Log{},
	})

	app := fiber.New(fiber.Config{AppName: "basket-payments " + Version})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders: "Content-Type, Authorization, Stripe-Signature",
	}))

	handlers.Register(app,
		handlers.NewPaymentHandler(orch, l),
		handlers.NewBasketHandler(db, basketSvc, l, orch),
		handlers.NewWebhookHandler(processor),
	)
	return app, nil
}
