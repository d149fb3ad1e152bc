// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"fmt"

	"github.com/hireflow/interview-core/internal/app"
	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/db"
	"github.com/hireflow/interview-core/internal/jobs"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/logger"
	"github.com/hireflow/interview-core/internal/scheduler"
	"github.com/hireflow/interview-core/internal/server"
	"github.com/hireflow/interview-core/internal/server/handler"
	"github.com/hireflow/interview-core/internal/storage"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp() (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	slogLogger := logger.NewLogger(provideLoggerConfig(cfg), provideLogWriter())

	dbConn, dbCleanup, err := db.NewDatabase(provideDBConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := storage.NewStore(provideSQLDB(dbConn))
	clock := provideClock()
	machine := lifecycle.New(store, clock, slogLogger)
	broadcaster := provideBroadcaster(store, machine, clock, cfg, slogLogger)
	arb := provideArbiter(store, machine, clock, cfg, slogLogger)

	calendarAdapter, err := provideCalendarAdapter(cfg, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create calendar adapter: %w", err)
	}

	gateway, err := provideNotificationGateway(cfg, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create notification gateway: %w", err)
	}

	handlers := provideHandlers(store, machine, calendarAdapter, gateway, cfg, slogLogger)
	runner := jobs.NewRunner(store, handlers, clock, provideWorkerConfig(cfg), slogLogger)
	pool := jobs.NewPool(store, runner, clock, provideWorkerConfig(cfg), slogLogger)
	sweeper := scheduler.NewSweeper(store, machine, clock, provideSchedulerConfig(cfg), slogLogger)

	interviewHandler := handler.NewInterviewHandler(store, machine, broadcaster, arb, clock, slogLogger)
	router := server.NewRouter(interviewHandler, slogLogger)
	srv := server.NewServer(cfg, router, slogLogger)

	application := app.NewApp(cfg, store, machine, broadcaster, sweeper, srv, pool, slogLogger)

	cleanup := func() {
		dbCleanup()
	}
	return application, cleanup, nil
}
