package startup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ballotline/registry/config"
	"github.com/ballotline/registry/internal/repositories/candidate"
	"github.com/ballotline/registry/internal/repositories/ingestrun"
	"github.com/ballotline/registry/internal/repositories/matchdecision"
	"github.com/ballotline/registry/pkg/consolidate"
	"github.com/ballotline/registry/pkg/database"
	"github.com/ballotline/registry/pkg/events"
	"github.com/ballotline/registry/pkg/kafka"
	"github.com/ballotline/registry/pkg/matching"
	"github.com/ballotline/registry/pkg/merging"
	"github.com/ballotline/registry/pkg/middleware"
	"github.com/ballotline/registry/pkg/pipeline"
	candidateroutes "github.com/ballotline/registry/pkg/routes/candidate"
	"github.com/ballotline/registry/pkg/routes/health"
	ingestrunroutes "github.com/ballotline/registry/pkg/routes/ingestrun"
	reviewroutes "github.com/ballotline/registry/pkg/routes/review"
	"github.com/ballotline/registry/pkg/tracing"
	"github.com/ballotline/registry/pkg/tracing/exporters"
)

const version = "1.0.0"

// dependency adapts plain start/stop funcs to the Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) Name() string { return d.name }

func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

// App wires the whole service: database + migrations, the DI container the
// route handlers resolve from, the kafka consumer feeding the ingest
// pipeline, and the HTTP server.
type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *Startup

	db             database.DB
	sqlxDB         *sqlx.DB
	runner         *pipeline.Runner
	consumer       *kafka.Consumer
	echo           *echo.Echo
	health         *health.Checker
	tracerProvider *sdktrace.TracerProvider
}

func NewApp(cfg *config.Config, logger ectologger.Logger) *App {
	app := &App{
		cfg:     cfg,
		logger:  logger,
		startup: New(logger, cfg.StartupMaxAttempts),
	}

	app.startup.Add(&dependency{name: "tracing", start: app.startTracing, stop: app.stopTracing})
	app.startup.Add(&dependency{name: "database", start: app.startDatabase, stop: app.stopDatabase})
	app.startup.Add(&dependency{name: "container", dependsOn: []string{"database"}, start: app.buildContainer})
	app.startup.Add(&dependency{name: "kafka-consumer", dependsOn: []string{"container"}, start: app.startConsumer, stop: app.stopConsumer})
	app.startup.Add(&dependency{name: "http-server", dependsOn: []string{"container", "kafka-consumer"}, start: app.startHTTP, stop: app.stopHTTP})

	return app
}

// Start brings the service up. The readiness probe flips only after every
// dependency started.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.health.SetReady(true)
	a.logger.WithField("port", a.cfg.Port).Infof("%s started", a.cfg.AppName)
	return nil
}

// Stop drains traffic and tears dependencies down in reverse order.
func (a *App) Stop(ctx context.Context) error {
	if a.health != nil {
		a.health.SetReady(false)
	}
	return a.startup.Stop(ctx)
}

func (a *App) startTracing(ctx context.Context) error {
	if a.cfg.OTLPEndpoint == "" {
		a.logger.Info("Tracing disabled: no OTLP endpoint configured")
		return nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: a.cfg.OTLPEndpoint,
		Protocol: a.cfg.OTLPProtocol,
		Insecure: a.cfg.OTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create OTLP exporter")
	}

	provider, err := tracing.Init(ctx, a.cfg.AppName, exporter)
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracing")
	}
	a.tracerProvider = provider
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.tracerProvider == nil {
		return nil
	}
	return a.tracerProvider.Shutdown(ctx)
}

func (a *App) startDatabase(ctx context.Context) error {
	db, sqlxDB, err := database.Connect(database.ConnectionConfig{
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	a.sqlxDB = sqlxDB

	driver, err := database.NewMigrationDriver(sqlxDB)
	if err != nil {
		return err
	}
	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(a.cfg.DatabaseName, driver)
}

func (a *App) stopDatabase(context.Context) error {
	if a.sqlxDB == nil {
		return nil
	}
	return a.sqlxDB.Close()
}

// buildContainer constructs the domain engine and registers everything the
// route handlers resolve with ectoinject.
func (a *App) buildContainer(context.Context) error {
	candidateRepo := candidate.NewRepository(a.db, a.logger)
	decisionRepo := matchdecision.NewRepository(a.db, a.logger)
	runRepo := ingestrun.NewRepository(a.db, a.logger)

	candidateProducer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	runProducer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaRunEventsTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	emitter := events.NewEmitter(candidateProducer, runProducer, a.logger)

	stateThresholds, err := a.cfg.StateThresholds()
	if err != nil {
		return errors.Wrap(err, "invalid state threshold overrides")
	}

	a.runner = pipeline.NewRunner(
		consolidate.New(consolidate.Config{
			StatewideThreshold:    a.cfg.StatewideThreshold,
			ExpectedJurisdictions: a.cfg.ExpectedJurisdictions,
		}, a.logger),
		matching.DefaultConfig(),
		matching.NewClassifier(a.cfg.Thresholds(), stateThresholds),
		merging.New(nil, merging.Config{StatewideThreshold: a.cfg.StatewideThreshold}, a.logger),
		candidateRepo,
		decisionRepo,
		runRepo,
		emitter,
		pipeline.Config{Workers: a.cfg.MatchWorkerCount},
		a.logger,
	)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return errors.Wrap(err, "failed to create DI container")
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, a.logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*candidate.Repository](container, candidateRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*matchdecision.Repository](container, decisionRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*ingestrun.Repository](container, runRepo); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*pipeline.Runner](container, a.runner)
}

func (a *App) startConsumer(ctx context.Context) error {
	if !a.cfg.KafkaConsumerEnabled {
		a.logger.Info("Filing batch consumer disabled")
		return nil
	}

	a.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       a.cfg.KafkaBrokers,
		Topic:         a.cfg.KafkaInputTopic,
		ConsumerGroup: a.cfg.KafkaConsumerGroup,
	}, a.logger, a.runner.HandleBatch)
	return a.consumer.Start(ctx)
}

func (a *App) stopConsumer(context.Context) error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Stop()
}

func (a *App) startHTTP(context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = a.cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(a.logger)
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	var consumerHealth health.ConsumerHealth
	if a.consumer != nil {
		consumerHealth = a.consumer
	}
	a.health = health.NewChecker(a.sqlxDB, consumerHealth, version)
	a.health.RegisterRoutes(e)

	api := e.Group("/api/v1")
	candidateroutes.Register(api.Group("/candidates"))
	reviewroutes.Register(api.Group("/reviews"))
	ingestrunroutes.Register(api.Group("/runs"))

	a.echo = e
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

func (a *App) stopHTTP(ctx context.Context) error {
	if a.echo == nil {
		return nil
	}
	return a.echo.Shutdown(ctx)
}
