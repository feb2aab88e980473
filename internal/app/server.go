// Package app wires each service from configuration and runs it until
// SIGINT or SIGTERM.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-tracker/internal/shared/util"
)

const shutdownTimeout = 5 * time.Second

// serve runs handler on port and blocks until a termination signal, then
// cancels background work and drains the server.
func serve(log *util.Logger, name, port string, handler http.Handler, cancel context.CancelFunc) {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.OK("HTTP", name+" running on :"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP", "Server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn(name, "Shutting down "+name+"...")
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP", "Shutdown error", err)
	} else {
		log.OK("HTTP", "Server stopped gracefully")
	}
	log.Info(name, "Shutdown complete")
}
