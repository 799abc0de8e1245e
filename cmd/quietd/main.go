// Copyright (C) 2025 quiet-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Command quietd runs one node of the protocol: it loads configuration,
// opens the configured storage backend, starts the envelope pipeline, and
// accepts peer connections over a WebSocket transport.Transport adapter.
// The physical transport is outside the pipeline's own scope, but quietd
// still needs a concrete, running transport to drive that pipeline end to
// end; transport/websocket is that adapter.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quietprotocol/quiet/config"
	"github.com/quietprotocol/quiet/daemon"
	"github.com/quietprotocol/quiet/internal/logger"
	"github.com/quietprotocol/quiet/internal/metrics"
	"github.com/quietprotocol/quiet/transport"
	wstransport "github.com/quietprotocol/quiet/transport/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quietd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env before config.Load so QUIET_* overrides in a .env file
	// take effect the same way they would if exported in the shell.
	// Overload is a no-op (not an error) when the file is absent.
	_ = godotenv.Overload(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(os.Stdout, levelFromString(cfg.Logging.Level))
	log.SetPrettyPrint(cfg.Logging.Pretty)
	logger.SetDefaultLogger(log)

	log.Info("starting quietd",
		logger.String("environment", cfg.Environment),
		logger.String("storage_backend", cfg.Storage.Backend),
		logger.String("identity_id", cfg.Identity.IdentityID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, cfg.Identity.IdentityID)
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	defer d.Close()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			log.Info("metrics server listening", logger.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	wt := wstransport.New(10*time.Second, 60*time.Second, 30*time.Second)
	defer wt.Close()

	transportMux := http.NewServeMux()
	transportMux.Handle("/quiet", wt.Handler())
	transportSrv := &http.Server{Addr: cfg.Transport.ListenAddress, Handler: transportMux}
	go func() {
		log.Info("transport listening", logger.String("address", cfg.Transport.ListenAddress))
		if err := transportSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("transport server stopped", logger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = transportSrv.Close()
	}()

	log.Info("quietd ready", logger.String("listen_address", cfg.Transport.ListenAddress))

	runTransportLoop(ctx, log, d, wt)
	log.Info("quietd shutting down")
	return nil
}

// runTransportLoop drains wt.Recv() until ctx is done, feeding each
// datagram to the daemon and relaying whatever the pipeline emits back
// out over the same transport.
func runTransportLoop(ctx context.Context, log *logger.StructuredLogger, d *daemon.Daemon, wt transport.Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case datagram, ok := <-wt.Recv():
			if !ok {
				return
			}
			result, err := d.Ingest(ctx, datagram.OriginAddr, datagram.Data)
			if err != nil {
				log.Error("ingest failed", logger.Error(err), logger.String("origin", datagram.OriginAddr))
				continue
			}
			for _, out := range result.Outgoing {
				if err := wt.Send(ctx, out.DestAddr, out.RawData); err != nil {
					log.Error("send failed", logger.Error(err), logger.String("dest", out.DestAddr))
				}
			}
		}
	}
}

func levelFromString(level string) logger.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logger.DebugLevel
	case "WARN":
		return logger.WarnLevel
	case "ERROR":
		return logger.ErrorLevel
	case "FATAL":
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}
