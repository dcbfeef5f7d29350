package main

import (
	"log"
	"os"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
	emailsvc "github.com/trezcool/semina/services/email"
	logsvc "github.com/trezcool/semina/services/logger"
	"github.com/trezcool/semina/storage/database"
	sqlxrepos "github.com/trezcool/semina/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, svcLogger)
	}
	svc, err := seminar.NewService(conf, sqlxrepos.NewSeminarRepository(db, conf.Database.Engine), mailSvc, svcLogger)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:  db,
		svc: svc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
