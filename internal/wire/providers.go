package wire

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"

	"github.com/hireflow/interview-core/internal/app"
	"github.com/hireflow/interview-core/internal/arbiter"
	"github.com/hireflow/interview-core/internal/broadcast"
	"github.com/hireflow/interview-core/internal/calendar"
	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/db"
	"github.com/hireflow/interview-core/internal/jobs"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/logger"
	"github.com/hireflow/interview-core/internal/notify"
	"github.com/hireflow/interview-core/internal/scheduler"
	"github.com/hireflow/interview-core/internal/server"
	"github.com/hireflow/interview-core/internal/server/handler"
	"github.com/hireflow/interview-core/internal/storage"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	server.NewRouter,
	handler.NewInterviewHandler,
	logger.NewLogger,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewStore,
	lifecycle.New,
	scheduler.NewSweeper,
	jobs.NewPool,
	jobs.NewRunner,
	provideHandlers,
	provideSQLDB,
	provideBroadcaster,
	provideArbiter,
	provideCalendarAdapter,
	provideNotificationGateway,
	provideClock,
	provideLoggerConfig,
	provideLogWriter,
	provideDBConfig,
	provideWorkerConfig,
	provideSchedulerConfig,
)

func provideClock() core.Clock {
	return core.SystemClock{}
}

func provideSQLDB(dbConn *db.DB) *sqlx.DB {
	return dbConn.DB
}

func provideHandlers(store storage.Store, machine *lifecycle.Machine, cal core.CalendarAdapter, gateway core.NotificationGateway, cfg *config.Config, logger *slog.Logger) *jobs.Handlers {
	return jobs.NewHandlers(store, machine, cal, gateway,
		cfg.Notify.DashboardURL, cfg.Notify.FinanceInbox, logger)
}

func provideBroadcaster(store storage.Store, machine *lifecycle.Machine, clock core.Clock, cfg *config.Config, logger *slog.Logger) *broadcast.Broadcaster {
	return broadcast.New(store, machine, clock, cfg.Scheduler.InviteDeadline, logger)
}

func provideArbiter(store storage.Store, machine *lifecycle.Machine, clock core.Clock, cfg *config.Config, logger *slog.Logger) *arbiter.Arbiter {
	return arbiter.New(store, machine, clock, cfg.Worker.InterviewerGap, logger)
}

func provideCalendarAdapter(cfg *config.Config, logger *slog.Logger) (core.CalendarAdapter, error) {
	return calendar.New(cfg.Calendar, logger)
}

func provideNotificationGateway(cfg *config.Config, logger *slog.Logger) (core.NotificationGateway, error) {
	registry, err := notify.NewRegistry(cfg.Notify.TemplatesFile)
	if err != nil {
		return nil, err
	}
	return notify.NewGateway(cfg.Notify, registry, logger), nil
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter() io.Writer {
	return os.Stdout
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return cfg.Database
}

func provideWorkerConfig(cfg *config.Config) config.WorkerConfig {
	return cfg.Worker
}

func provideSchedulerConfig(cfg *config.Config) config.SchedulerConfig {
	return cfg.Scheduler
}
