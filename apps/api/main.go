package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/marks"
	"github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/services/notification"
	"github.com/trezcool/alama/storage/database"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(!(core.Conf.Debug || core.Conf.TestMode))

	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()
	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// set up repos & services
	markRepo := sqlxrepos.NewMarkRepository(sdb)
	registry := sqlxrepos.NewReferenceRegistry(sdb)

	var notifSvc core.NotificationService
	if core.Conf.Debug {
		notifSvc = notifsvc.NewConsoleService()
	} else {
		notifSvc = notifsvc.NewSendgridService(logger)
	}

	markSvc := marks.NewService(markRepo, registry, notifSvc, logger)
	projector := marks.NewProjector(markRepo, registry)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:      core.Conf.Server.Address(),
		MarkSvc:   markSvc,
		Projector: projector,
		Logger:    logger,
	})
	app.Start()
}
