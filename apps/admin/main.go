package main

import (
	"io"
	"log"
	"os"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/fs"
	"github.com/safnadck/myapplication/services/email"
	"github.com/safnadck/myapplication/services/events/kafka"
	"github.com/safnadck/myapplication/services/logger"
	"github.com/safnadck/myapplication/storage/database"
	"github.com/safnadck/myapplication/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	lg := logsvc.NewRollbarLogger(stdLogger, conf)
	lg.Enable(!conf.Debug)
	logger = lg

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	var mailer core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailer = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailer = emailsvc.NewSendgridService(conf, logger)
	}
	events := kafkaevents.NewEventPublisher(conf)
	if closer, ok := events.(io.Closer); ok {
		defer closer.Close()
	}

	// start CLI
	cli := commandLine{
		db:   db.DB,
		conf: conf,
		feeSvc: fee.NewService(
			sqlxrepos.NewTransactor(db),
			sqlxrepos.NewFeeRepository(db),
			sqlxrepos.NewDirectory(db),
			sqlxrepos.NewEnrollmentService(db),
			events,
			mailer,
			logger,
			conf,
		),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("\nerror: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
