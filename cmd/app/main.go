package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	sqliteadapter "github.com/atvirokodosprendimai/inventory/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/inventory/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/inventory/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/config"
	"github.com/atvirokodosprendimai/inventory/internal/logger"
	"github.com/atvirokodosprendimai/inventory/internal/storage"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "inventory",
		Usage: "Network inventory server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			classesCommand(),
			objectsCommand(),
			actionsCommand(),
			physicalCommand(),
			mirrorsCommand(),
			activityCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP and JSON-RPC servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default config.yaml in . or ~/.inventory)"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address, overrides server.addr"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path, overrides database.path"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if v := c.String("addr"); v != "" {
				cfg.Server.Addr = v
			}
			if v := c.String("db-path"); v != "" {
				cfg.Database.Path = v
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	db, err := sqliteadapter.Open(cfg.Database.Path, &gorm.Config{Logger: logger.NewGormLogger(zl, logger.GormLevel(cfg.Log.SQL))})
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db, zl); err != nil {
		return err
	}
	repo := sqliteadapter.NewRepository(db)

	meta := application.NewMetadataService(repo, zl)
	if err := meta.Bootstrap(ctx); err != nil {
		return err
	}
	app := application.NewApplicationService(repo, meta, zl)
	if err := app.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}
	blobs, err := storage.New(ctx, cfg.Storage, zl)
	if err != nil {
		return err
	}
	business := application.NewBusinessService(repo, repo, meta, blobs, zl, application.WithMaxFileSize(cfg.Attachments.MaxSize))
	physical := application.NewPhysicalConnectionsService(repo, business, meta, app, zl)
	mirrors := application.NewMirrorService(business, meta, app, zl)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := actions.NewMetrics(promReg)
	if err != nil {
		return err
	}
	bus := actions.NewBus(zl)
	bus.Subscribe(metrics)
	hub := httpadapter.NewHub(zl)
	bus.Subscribe(hub)
	defer func() { _ = hub.Close() }()

	registry := actions.NewRegistry(app, bus, zl, actions.WithMetrics(metrics))
	if err := actions.RegisterBuiltins(registry, actions.Services{
		Meta: meta, Business: business, App: app, Physical: physical, Mirrors: mirrors,
	}); err != nil {
		return err
	}

	engine := wizard.NewEngine(cfg.Wizard.SessionTTL, zl)
	for _, def := range []wizard.Definition{
		wizard.NewPhysicalConnection(meta, business, app, registry),
		wizard.NewRelationshipManagement(business, registry),
	} {
		if err := engine.Register(def); err != nil {
			return err
		}
	}
	go engine.Run(ctx, time.Minute)

	router := httpadapter.NewRouter(httpadapter.Services{
		App:      app,
		Meta:     meta,
		Business: business,
		Physical: physical,
		Mirrors:  mirrors,
		Actions:  registry,
		Wizards:  engine,
		Events:   hub,
		Gatherer: promReg,
	}, httpadapter.Options{
		SessionTTL:     cfg.Server.SessionTTL,
		LoginRateLimit: cfg.HTTP.LoginRateLimit,
		LoginBurst:     cfg.HTTP.LoginBurst,
	}, zl)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	rpcSrv, err := rpcadapter.Start(cfg.Server.RPCSocket, rpcadapter.Services{
		App: app, Meta: meta, Business: business, Physical: physical, Mirrors: mirrors, Actions: registry,
	}, zl)
	if err != nil {
		return err
	}
	defer func() { _ = rpcSrv.Close() }()
	zl.Info("json-rpc listening", zap.String("socket", cfg.Server.RPCSocket))

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
