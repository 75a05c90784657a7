package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/api"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/scheduler"
)

const (
	signalChannelBufferSize = 1
	shutdownTimeout         = 30 * time.Second
)

// RunUntilInterrupt runs the server until interrupted by signal or error.
func RunUntilInterrupt(
	log logger.Logger,
	server *api.Server,
	sched *scheduler.Scheduler,
	orch *orchestrator.Orchestrator,
) error {
	errChan := server.StartAsync()

	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		if serverErr != nil {
			log.Error("Server error", logger.Error(serverErr))
			return fmt.Errorf("server error: %w", serverErr)
		}
		return nil
	case sig := <-sigChan:
		return Shutdown(log, server, sched, orch, sig)
	}
}

// Shutdown performs graceful shutdown in order: the server stops accepting
// requests, the scheduler stops firing, and the orchestrator drains any
// jobs still running.
func Shutdown(
	log logger.Logger,
	server *api.Server,
	sched *scheduler.Scheduler,
	orch *orchestrator.Orchestrator,
	sig os.Signal,
) error {
	log.Info("Shutdown signal received", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Failed to stop server", logger.Error(err))
	}

	log.Info("Stopping scheduler")
	sched.Stop()

	log.Info("Stopping orchestrator")
	if err := orch.Shutdown(ctx); err != nil {
		log.Error("Failed to stop orchestrator", logger.Error(err))
		return fmt.Errorf("failed to stop orchestrator: %w", err)
	}

	log.Info("Service stopped successfully")
	return nil
}
