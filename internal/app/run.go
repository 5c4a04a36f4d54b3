package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkfj/hass-dewpoint/internal/config"
	db "github.com/tkfj/hass-dewpoint/internal/db"
	"github.com/tkfj/hass-dewpoint/internal/db/migrate"
	"github.com/tkfj/hass-dewpoint/internal/entry"
	httpapi "github.com/tkfj/hass-dewpoint/internal/httpapi"
	"github.com/tkfj/hass-dewpoint/internal/manager"
	entries "github.com/tkfj/hass-dewpoint/internal/modules/entries"
	"github.com/tkfj/hass-dewpoint/internal/modules/entries/repository"
	"github.com/tkfj/hass-dewpoint/internal/mqtt"
	"github.com/tkfj/hass-dewpoint/internal/state"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"sqliteLogQueries", cfg.SQLiteLogQueries,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttClientID", cfg.MQTTClientID,
		"statestreamTopic", cfg.StatestreamTopic,
		"discoveryPrefix", cfg.DiscoveryPrefix,
		"baseTopic", cfg.BaseTopic,
		"entriesFile", cfg.EntriesFile,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, dbConn)
	if err != nil {
		return err
	}
	slog.Info("database ready", "migrationsApplied", applied)

	logger := slog.Default()
	store := state.NewStore()
	mqttClient := mqtt.NewClient(cfg, store, logger.With("component", "mqtt"))
	mgr := manager.New(repository.NewRepository(dbConn), store, mqttClient, logger)
	defer mgr.Stop()

	// Registered before Connect so the first OnConnect already re-announces sensors.
	mqttClient.SetOnConnect(mgr.Republish)

	// Use a short timeout for initial MQTT connect so startup does not block when the broker is down.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = mqttClient.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing, paho keeps retrying)", "error", err)
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	if cfg.EntriesFile != "" {
		if err := syncEntriesFile(ctx, cfg.EntriesFile, mgr); err != nil {
			return err
		}
		go func() {
			err := entry.Watch(ctx, cfg.EntriesFile, func(f *entry.File) {
				if err := mgr.Sync(ctx, f); err != nil {
					slog.Error("entries file sync failed", "path", cfg.EntriesFile, "error", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("entries file watch stopped", "path", cfg.EntriesFile, "error", err)
			}
		}()
	}

	mux := httpapi.NewMux(dbConn, mqttClient)
	entries.RegisterFeature(mux, mgr)
	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		mqttClient.Disconnect()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("mqtt disconnecting")
	mqttClient.Disconnect()

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func syncEntriesFile(ctx context.Context, path string, mgr *manager.Manager) error {
	f, err := entry.LoadFile(path)
	if err != nil {
		return err
	}
	if err := mgr.Sync(ctx, f); err != nil {
		return err
	}
	slog.Info("entries file loaded", "path", path, "entries", len(f.Entries))
	return nil
}
