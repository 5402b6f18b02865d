package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/PayRam/go-fundraising"
	"github.com/PayRam/go-fundraising/internal/cache"
	"github.com/PayRam/go-fundraising/internal/config"
	"github.com/PayRam/go-fundraising/internal/db"
	"github.com/PayRam/go-fundraising/internal/messaging"
	"github.com/PayRam/go-fundraising/internal/scheduler"
	"github.com/spf13/cobra"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "fundraisingd",
		Short:   "Campaign reconciliation daemon",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	service  *go_fundraising.FundraisingService
	location *time.Location
	logger   *log.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := log.New(os.Stderr, "fundraisingd ", log.LstdFlags|log.Lmicroseconds)

	conn, err := db.Connect(cfg.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	messenger, err := messaging.NewFCMDispatcher(ctx, cfg.FCMServiceAccount, logger)
	if err != nil {
		return nil, err
	}

	svc := go_fundraising.NewFundraisingService(conn,
		go_fundraising.WithLogger(logger),
		go_fundraising.WithMessenger(messenger),
		go_fundraising.WithCache(cache.NewMemory()),
		go_fundraising.WithLocation(loc),
		go_fundraising.WithCacheTTL(cfg.CampaignTTL, cfg.DashboardTTL),
		go_fundraising.WithJobLimits(cfg.TenantJobTimeout, cfg.JobConcurrency),
		go_fundraising.WithDevMode(cfg.DevMode),
	)
	return &app{cfg: cfg, service: svc, location: loc, logger: logger}, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			s := a.cfg.Schedule
			sched, err := scheduler.New(a.service.Worker, scheduler.Specs{
				ProgressSync:        s.ProgressSync,
				ExpirationSweep:     s.ExpirationSweep,
				ExpirationReminders: s.ExpirationReminders,
				WeeklyReport:        s.WeeklyReport,
				MonthlyReport:       s.MonthlyReport,
			}, a.location, a.logger)
			if err != nil {
				return err
			}

			sched.Start()
			a.logger.Printf("scheduler started with %d jobs in %s", sched.Entries(), a.location)
			<-ctx.Done()

			grace, _ := cmd.Flags().GetDuration("grace")
			shutdown, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			if err := sched.Stop(shutdown); err != nil {
				a.logger.Printf("scheduler stop: %v", err)
			}
			a.logger.Println("scheduler stopped")
			return nil
		},
	}

	cmd.Flags().Duration("grace", 30*time.Second, "How long running jobs may take to finish on shutdown")

	return cmd
}

func jobCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "job [name]",
		Short:     "Run one job now: " + strings.Join(scheduler.JobNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: scheduler.JobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			job, ok := scheduler.Jobs(a.service.Worker)[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q, expected one of %s", args[0], strings.Join(scheduler.JobNames(), ", "))
			}
			result, err := job(ctx)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.Connect(cfg.DatabaseURL, nil)
			if err != nil {
				return err
			}
			if err := db.RunMigrations(conn); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
