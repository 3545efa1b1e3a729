package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/seantiz/hamevo/internal/api"
	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/backend/qasm"
	"github.com/seantiz/hamevo/internal/backend/statevector"
	"github.com/seantiz/hamevo/internal/config"
	"github.com/seantiz/hamevo/internal/engine"
	"github.com/seantiz/hamevo/internal/model"
	"github.com/seantiz/hamevo/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	logger.Info("hamevo: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_qubits", cfg.MaxQubits,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := backend.NewRegistry()
	reg.Register(model.BackendStatevector, statevector.New(cfg.MaxQubits, logger.With("backend", model.BackendStatevector)))
	reg.Register(model.BackendQasm, qasm.New(qasm.Options{
		Shots:     cfg.Shots,
		MaxQubits: cfg.MaxQubits,
		Seed:      cfg.Seed,
	}, logger.With("backend", model.BackendQasm)))

	eng := engine.NewEngine(db, reg, logger, engine.Options{
		DefaultTimeoutS: cfg.RunTimeoutS,
		SubmitRate:      cfg.SubmitRate,
		SubmitBurst:     cfg.SubmitBurst,
		MaxInstructions: cfg.MaxInstructions,
	})

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	logger.Info("waiting for in-flight runs")
	eng.Wait()
}
