package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Register the pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/foureyes/bando/apps/api/echo"
	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
	emailsvc "github.com/foureyes/bando/services/email"
	logsvc "github.com/foureyes/bando/services/logger"
	"github.com/foureyes/bando/storage/database"
	sqlxrepos "github.com/foureyes/bando/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up validation
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	notice.InitValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	assignmentRepo := sqlxrepos.NewAssignmentRepository(db)

	usrSvc := user.NewService(usrRepo)
	noticeSvc := notice.NewService(sqlxrepos.NoticeRepositories(db), tx, validate, mailSvc, logger)
	assignmentSvc := assignment.NewService(assignmentRepo, usrRepo, validate, mailSvc, logger)
	ratingSvc := rating.NewService(sqlxrepos.NewRatingRepository(db), assignmentRepo, usrRepo, validate, logger)
	candidatureSvc := candidature.NewService(
		sqlxrepos.NewCandidatureRepository(db),
		sqlxrepos.NewDocumentRepository(db),
		noticeSvc,
		tx,
		validate,
		logger,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Auth:           echoapi.NewJWTAuthenticator(conf, usrSvc),
			UserSvc:        usrSvc,
			NoticeSvc:      noticeSvc,
			AssignmentSvc:  assignmentSvc,
			RatingSvc:      ratingSvc,
			CandidatureSvc: candidatureSvc,
			Validate:       validate,
			Translator:     translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
