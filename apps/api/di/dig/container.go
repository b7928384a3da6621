package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/services/email"
	"github.com/safnadck/myapplication/services/enrollment/rediscache"
	"github.com/safnadck/myapplication/services/events/kafka"
	"github.com/safnadck/myapplication/services/logger"
	"github.com/safnadck/myapplication/storage/database"
	"github.com/safnadck/myapplication/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newEnrollment reads enrollments from the database, through the redis cache when one is configured.
func newEnrollment(conf *core.Config, db *sqlx.DB, logger core.Logger) fee.Enrollment {
	enrollment := sqlxrepos.NewEnrollmentService(db)

	rdb, err := rediscache.NewClient(context.Background(), conf)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis, enrollment cache disabled: %v", err), err)
		return enrollment
	}
	if rdb == nil {
		return enrollment
	}
	return rediscache.New(enrollment, rdb, conf.Redis.EnrollmentTTL, logger)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate)
	return validate
}

// newShutdown relays interrupt & terminate signals; the server sends on it too when it has to stop.
func newShutdown() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	FeeSvc     fee.ServiceInterface
	Shutdown   chan os.Signal
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Address, p.Shutdown, &echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		FeeSvc:     p.FeeSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewTransactor))
	must(c.Provide(sqlxrepos.NewFeeRepository, dig.As(new(fee.Repository))))
	must(c.Provide(sqlxrepos.NewDirectory, dig.As(new(fee.Directory))))
	must(c.Provide(newEnrollment))
	must(c.Provide(kafkaevents.NewEventPublisher))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(fee.NewService, dig.As(new(fee.ServiceInterface))))
	must(c.Provide(newShutdown))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
