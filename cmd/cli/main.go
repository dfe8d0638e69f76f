package main

import (
	"os"
	"strings"

	"github.com/afrisend/comms-gateway/internal/config"
	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/pg"
)

// Migration runner. Usage:
//
//	cli --env=.env --dir=./migrations
func main() {
	if err := config.Load(argPath("--env=", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
	}

	cfg := config.Get()
	pgConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}

	dir := argPath("--dir=", "./migrations")
	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Fatal(err, "dir", dir)
	}
	logger.Info("migrations applied", "dir", dir)
}

// argPath returns the value of a --flag=path argument, falling back to
// fallback. A path that does not exist resolves to the empty string.
func argPath(flag, fallback string) string {
	path := fallback
	for _, v := range os.Args[1:] {
		if strings.HasPrefix(v, flag) {
			path = strings.TrimPrefix(v, flag)
			break
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("path not accessible", "path", path, "error", err)
		return ""
	}
	return path
}
