package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/safnadck/myapplication/apps/api/di/dig"
	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/fs"
)

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(
	conf *core.Config,
	logger core.Logger,
	dbLoggerParam dig_container.DBLoggerParam,
	db *sqlx.DB,
	events core.EventPublisher,
	shutdown chan os.Signal,
	server echoapi.Server,
) {
	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	dbLogger := dbLoggerParam.Logger
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	defer func() {
		if closer, ok := events.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing event publisher: %v", err), err)
			}
		}
	}()
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
