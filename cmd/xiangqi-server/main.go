// Package main implements the HTTP front end for driving UCCI engines.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	"xiangqi/internal/server"
	"xiangqi/internal/service"
	"xiangqi/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to engines.toml (default: standard locations)")
	dbPath := flag.String("db", "xiangqi.db", "SQLite file for analysis history (empty disables persistence)")
	addr := flag.String("addr", ":8080", "listen address")
	pidFile := flag.String("pid", "", "PID file path (empty disables)")
	debug := flag.Bool("debug", false, "log protocol traffic")
	flag.Parse()

	logrus.SetOutput(os.Stderr)
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if *pidFile != "" {
		cleanup, err := writePIDFile(*pidFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer cleanup()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load engine config: %v\n", err)
		os.Exit(1)
	}

	var store *storage.Store
	if *dbPath != "" {
		store, err = storage.NewStore(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
			os.Exit(1)
		}
		if err := store.InitDB(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize history database: %v\n", err)
			os.Exit(1)
		}
	}

	svc := service.New(store)
	defer svc.ShutdownAll()

	// The HTTP surface is poll-based; session status is read on demand.
	// The event stream still has to be drained so forwarders never stall.
	go drainEvents(svc)

	app := server.NewFiberApp(svc, cfg, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(*addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logrus.WithField("signal", sig.String()).Info("shutting down")
		_ = app.Shutdown()
	case err := <-errCh:
		if err != nil {
			logrus.WithError(err).Error("server stopped")
		}
	}
}

func drainEvents(svc *service.Service) {
	for routed := range svc.Events() {
		switch t := routed.Event.(type) {
		case engine.Terminated:
			logrus.WithFields(logrus.Fields{
				"handle": routed.Handle,
				"reason": t.Reason.Kind.String(),
			}).Info("session terminated")
		default:
			logrus.WithField("handle", routed.Handle).Debugf("event %T", routed.Event)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad()
}
