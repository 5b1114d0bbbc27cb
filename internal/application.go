package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goban-live/goban-backend/internal/config"
	"github.com/goban-live/goban-backend/internal/monitor"
	"github.com/goban-live/goban-backend/internal/repository"
	"github.com/goban-live/goban-backend/internal/repository/storage"
	"github.com/goban-live/goban-backend/internal/service"
	"github.com/goban-live/goban-backend/transport/rest"
	"github.com/goban-live/goban-backend/transport/websocket"
)

var ErrUnknownStorage = errors.New("unknown storage backend")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	roomRepo, chatRepo, closeStorage, err := buildRepositories(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err = closeStorage(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	metrics := monitor.New("goban")
	hub := websocket.NewHub(logger)
	roomService := service.NewRoomService(logger, roomRepo, chatRepo, hub)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, roomService)
		if httpErr := restServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, roomService, hub, metrics)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// buildRepositories wires the configured storage backend behind the
// repository interfaces.
func buildRepositories(ctx context.Context, conf *config.Config) (repository.RoomRepository, repository.ChatRepository, func() error, error) {
	switch conf.Storage {
	case config.StorageRedis:
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		roomRepo := repository.NewRoomRepository(redisStorage.Connection)
		chatRepo := repository.NewChatRepository(redisStorage.Connection)

		return roomRepo, chatRepo, redisStorage.Close, nil

	case config.StoragePostgres:
		db, err := storage.NewPostgresStorage(
			conf.Postgres.Host,
			conf.Postgres.Port,
			conf.Postgres.User,
			conf.Postgres.Password,
			conf.Postgres.DBName,
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not connect to postgres storage: %w", err)
		}

		roomRepo, err := repository.NewPostgresRoomRepository(db)
		if err != nil {
			return nil, nil, nil, err
		}

		chatRepo, err := repository.NewPostgresChatRepository(db)
		if err != nil {
			return nil, nil, nil, err
		}

		closeFn := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get sql db: %w", err)
			}
			return sqlDB.Close()
		}

		return roomRepo, chatRepo, closeFn, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownStorage, conf.Storage)
	}
}
