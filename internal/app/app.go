package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cilantra/cilantra/internal/pkg/clock"
	"github.com/cilantra/cilantra/internal/pkg/config"
	"github.com/cilantra/cilantra/internal/pkg/goroutine"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
	"github.com/cilantra/cilantra/internal/pkg/otp"
	"github.com/cilantra/cilantra/internal/pkg/router"
	"github.com/cilantra/cilantra/internal/pkg/uid"
	"github.com/cilantra/cilantra/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	totp      otp.OTP

	// resources
	dbConn *pgxpool.Pool

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
