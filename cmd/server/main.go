package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	infraconfig "github.com/andeslabs/cryptoqr/backend/internal/infrastructure/config"
	"github.com/andeslabs/cryptoqr/backend/internal/server"
)

func main() {
	// Parse flags
	port := flag.String("port", "", "Server port (overrides PORT)")
	qrDir := flag.String("qr-dir", "", "Command-line seed for the QR output directory")
	configFile := flag.String("config", "", "Optional TOML config file (whitelist, blocked patterns)")
	flag.Parse()

	cfg := infraconfig.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}

	srv, err := server.NewServer(server.Config{
		App:            cfg,
		CommandLineDir: *qrDir,
		ConfigFile:     *configFile,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg.Server.Host + ":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
