package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/config"
	"github.com/mbeckett/dremelink/internal/dremel"
	"github.com/mbeckett/dremelink/internal/event"
	"github.com/mbeckett/dremelink/internal/registry"
	"github.com/mbeckett/dremelink/internal/server"
	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/internal/settings"
	"github.com/mbeckett/dremelink/internal/store"
	"github.com/mbeckett/dremelink/internal/version"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "backup":
			runBackup(os.Args[2:])
			return
		case "restore":
			runRestore(os.Args[2:])
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("dremelink starting", zap.String("version", version.Short()))

	v, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg := config.New(v)

	db, err := store.New(cfg.GetString("store.path"))
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	bus := event.NewBus(logger)
	reg := registry.New(logger)

	modules := []plugin.Plugin{
		dremel.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	depsFor := func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Logger: logger.Named(name),
			Bus:    bus,
			Store:  db,
			Config: v,
		}
	}
	if err := reg.InitAll(ctx, depsFor); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}
	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	settingsRepo, err := services.NewSQLiteSettingsRepository(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize settings", zap.Error(err))
	}
	settingsHandler := settings.NewHandler(settingsRepo, logger.Named("settings"))

	addr := fmt.Sprintf("%s:%d",
		cfg.GetString("server.host"), cfg.GetInt("server.port"))
	srv := server.New(addr, reg, settingsHandler, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("dremelink ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("dremelink stopped")
}
