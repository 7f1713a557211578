package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/database"
	"github.com/tonearmlabs/tonearm/pkg/ingest"
	"github.com/tonearmlabs/tonearm/pkg/migrations"
	"github.com/tonearmlabs/tonearm/pkg/providers/httpapi"
	"github.com/tonearmlabs/tonearm/pkg/server"
	"github.com/tonearmlabs/tonearm/pkg/version"
	"github.com/tonearmlabs/tonearm/pkg/worker"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting tonearm", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	engine := workflow.NewEngine(db)
	engine.SetConcurrency(cfg.IngestConcurrency)

	catalog := httpapi.NewCatalog(cfg.CatalogProviderURL)
	lyrics := httpapi.NewLyrics(cfg.LyricsProviderURL)
	pipeline := ingest.NewPipeline(db, engine, catalog, lyrics)

	wrkr := worker.New(cfg, engine, pipeline.JobService())

	srv, err := server.New(cfg, db, pipeline)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		// Extract actual port (useful when ServerPort is 0)
		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
