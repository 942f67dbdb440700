// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"weechatorg/internal/cache"
	"weechatorg/internal/config"
	"weechatorg/internal/database"
	"weechatorg/internal/export"
	"weechatorg/internal/storage"
	"weechatorg/internal/store"
)

// app holds the connections and components shared by the commands.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	valkey   *redis.Client
	themes   *store.ThemeStore
	releases *store.ReleaseStore
	pipeline *export.Pipeline
}

// newApp loads configuration and connects to PostgreSQL. When migrate is
// set, pending migrations run (and dev data is seeded) before returning.
func newApp(migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"files_root", cfg.FilesRoot,
	)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a := &app{cfg: cfg, db: db}

	if migrate {
		if err := a.migrate(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if err := a.buildPipeline(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) migrate() error {
	if err := database.Migrate(a.db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if a.cfg.IsDev() {
		if err := database.Seed(a.db); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}
	return nil
}

// buildPipeline wires the stores to the export pipeline, with the Valkey
// lock and the S3 mirror when they are configured.
func (a *app) buildPipeline() error {
	a.themes = store.NewThemeStore(a.db)
	a.releases = store.NewReleaseStore(a.db)

	var opts []export.Option

	if a.cfg.ValkeyEnabled() {
		client, err := cache.ConnectValkey(a.cfg.ValkeyHost, a.cfg.ValkeyPort, a.cfg.ValkeyPassword)
		if err != nil {
			return fmt.Errorf("connect to valkey: %w", err)
		}
		a.valkey = client
		opts = append(opts, export.WithLocker(cache.NewLock(client, cache.ExportLockKey, cache.DefaultLockTTL)))
	} else {
		slog.Warn("valkey not configured, export runs are serialized in-process only")
	}

	mirror, err := storage.New(
		a.cfg.S3Endpoint, a.cfg.S3Region, a.cfg.S3AccessKey, a.cfg.S3SecretKey,
		a.cfg.S3Bucket, a.cfg.S3Prefix, a.cfg.S3PublicURL,
	)
	if err != nil {
		return fmt.Errorf("initialize s3 storage: %w", err)
	}
	if mirror != nil {
		opts = append(opts, export.WithMirror(mirror))
		slog.Info("s3 export mirror enabled",
			"endpoint", a.cfg.S3Endpoint,
			"bucket", a.cfg.S3Bucket,
			"feed_url", mirror.ArtifactURL(export.XMLFile),
		)
	}

	a.pipeline = export.New(a.themes, a.cfg.FilesRoot, a.cfg.SiteURL, opts...)
	if err := a.pipeline.EnsureDirs(); err != nil {
		return fmt.Errorf("prepare files root: %w", err)
	}

	// Every committed theme write rebuilds the feeds.
	a.themes.OnSave(a.pipeline.Regenerate)
	return nil
}

// Close releases the connections.
func (a *app) Close() {
	if a.valkey != nil {
		a.valkey.Close()
	}
	a.db.Close()
}
