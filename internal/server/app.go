// Package server initializes and runs the accountkeeper server: database,
// migrations, the auth core, and the HTTP transport, with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/avasiliev/accountkeeper/internal/cryptox"
	"github.com/avasiliev/accountkeeper/internal/logging"
	"github.com/avasiliev/accountkeeper/internal/server/auth"
	"github.com/avasiliev/accountkeeper/internal/server/config"
	"github.com/avasiliev/accountkeeper/internal/server/httpapi"
	"github.com/avasiliev/accountkeeper/internal/server/migrations"
	"github.com/avasiliev/accountkeeper/internal/server/repositories/users"
	"github.com/avasiliev/accountkeeper/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// keyDerivationSalt is the domain-separation salt for stretching the
// configured codec passphrase. It is not a per-secret salt; each sealed
// secret carries its own random nonce.
const keyDerivationSalt = "accountkeeper/credential-codec/v1"

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	codecKey := cryptox.DeriveKey([]byte(cfg.EncryptionKey), []byte(keyDerivationSalt))
	codec, err := cryptox.NewCodec(codecKey, logger)
	if err != nil {
		return nil, fmt.Errorf("codec init error: %w", err)
	}

	issuer := auth.NewIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	repo := users.NewPostgresRepository(db)
	gate := auth.NewGate(issuer, repo, cfg.DBTimeout)
	accounts := services.NewAccountService(repo, codec, issuer, cfg.DBTimeout, logger)

	handler := httpapi.NewHandler(accounts, logger)
	srv := httpapi.NewServer(cfg.EndpointAddr, handler, gate, logger)

	return &App{config: cfg, logger: logger, db: db, httpServer: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
