package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/api"
	"github.com/SyfSchydea/osrs-flip/internal/config"
	"github.com/SyfSchydea/osrs-flip/internal/db"
	"github.com/SyfSchydea/osrs-flip/internal/flipper"
	"github.com/SyfSchydea/osrs-flip/internal/logger"
	"github.com/SyfSchydea/osrs-flip/internal/metrics"
	"github.com/SyfSchydea/osrs-flip/internal/refresh"
	"github.com/SyfSchydea/osrs-flip/internal/render"
	"github.com/SyfSchydea/osrs-flip/internal/wiki"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	once := flag.Bool("once", false, "fetch once, print the table to stdout and exit")
	xlsxPath := flag.String("xlsx", "", "with -once, also write the table to this XLSX file")
	cash := flag.String("cash", "", "cash stack, e.g. 10m")
	period := flag.String("period", "", "holding period, e.g. 4h")
	pricePeriod := flag.String("price-period", "", "price resource: latest, 5m, 10m, 30m, 1h, 6h or 24h")
	flag.Parse()

	if *once {
		// Keep stdout for the table.
		logger.SetOutput(os.Stderr)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("CONFIG", fmt.Sprintf(".env: %v", err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *cash != "" {
		cfg.Flip.CashStack = *cash
	}
	if *period != "" {
		cfg.Flip.HoldingPeriod = *period
	}
	if *pricePeriod != "" {
		cfg.Flip.PricePeriod = *pricePeriod
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		os.Exit(runOnce(ctx, cfg, *xlsxPath))
	}

	logger.Banner(version)
	if err := serve(ctx, cfg); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

func newClient(cfg *config.Config, observer wiki.Observer) *wiki.Client {
	return wiki.NewClient(wiki.Options{
		BaseURL:     cfg.Wiki.BaseURL,
		UserAgent:   cfg.Wiki.UserAgent,
		Timeout:     cfg.Wiki.Timeout,
		Concurrency: cfg.Wiki.Concurrency,
		MaxRetries:  cfg.Wiki.MaxRetries,
		BackoffMin:  cfg.Wiki.BackoffMin,
		BackoffMax:  cfg.Wiki.BackoffMax,
		Observer:    observer,
	})
}

func sessionOptions(cfg *config.Config) flipper.Options {
	return flipper.Options{
		CashStack:           cfg.Flip.CashStack,
		HoldingPeriod:       cfg.Flip.HoldingPeriod,
		PricePeriod:         cfg.Flip.PricePeriod,
		AutoRefresh:         cfg.Refresh.AutoRefresh,
		PageLimit:           cfg.Flip.PageLimit,
		LookbackHours:       cfg.Flip.LookbackHours,
		BuyLimitWindowHours: cfg.Flip.BuyLimitWindow,
		HistoryLimit:        cfg.HistoryLimit,
	}
}

// runOnce fetches every dataset, prints one table and returns the exit code.
func runOnce(ctx context.Context, cfg *config.Config, xlsxPath string) int {
	opts := sessionOptions(cfg)
	opts.Source = newClient(cfg, nil)
	opts.Presenters = []render.Presenter{render.NewTable(os.Stdout, false)}
	if xlsxPath != "" {
		opts.Presenters = append(opts.Presenters, &render.Workbook{Path: xlsxPath})
	}
	session, err := flipper.New(opts)
	if err != nil {
		logger.Error("INPUT", err.Error())
		return 2
	}
	if err := session.Start(ctx); err != nil {
		logger.Error("FETCH", err.Error())
		return 1
	}
	if !session.Render() {
		logger.Error("RENDER", "Datasets incomplete")
		return 1
	}
	if xlsxPath != "" {
		logger.Success("XLSX", "Wrote "+xlsxPath)
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config) error {
	database, err := db.Open()
	if err != nil {
		return err
	}
	defer database.Close()

	recorder := metrics.New(nil)
	client := newClient(cfg, recorder)
	hub := api.NewHub()

	opts := sessionOptions(cfg)
	opts.Source = client
	opts.History = database
	opts.Metrics = recorder
	opts.Presenters = []render.Presenter{hub}
	session, err := flipper.New(opts)
	if err != nil {
		return err
	}

	scheduler := refresh.New(cfg.Refresh.Interval, func() {
		rctx, cancel := context.WithTimeout(ctx, cfg.Wiki.Timeout*2)
		defer cancel()
		if err := session.Refresh(rctx); err == nil {
			logger.Debug("REFRESH", "Auto refresh complete")
		}
	})
	defer scheduler.Stop()
	session.SetAutoRefresher(scheduler)

	logger.Section("Settings")
	in := session.Inputs()
	logger.Stats("Cash stack", humanCash(in))
	logger.Stats("Holding period", in.Period)
	logger.Stats("Price period", in.PricePeriod)
	logger.Stats("Auto refresh", in.AutoRefresh)

	go session.Run(ctx)
	go func() {
		if err := session.Start(ctx); err != nil {
			logger.Warn("FETCH", "Initial load incomplete: "+err.Error())
			return
		}
		logger.Success("FETCH", "All datasets loaded")
	}()

	srv := api.NewServer(api.Options{
		Session: session,
		DB:      database,
		Health:  client,
		Hub:     hub,
		Metrics: promhttp.Handler(),
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	errc := make(chan error, 1)
	go func() {
		logger.Server(addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func humanCash(in flipper.Inputs) string {
	if in.Cash == "" {
		return "unlimited"
	}
	return in.Cash
}
