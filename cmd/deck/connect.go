package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/attachment"
	"github.com/zulandar/testdeck/internal/config"
	"github.com/zulandar/testdeck/internal/db"
	"gorm.io/gorm"
)

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Testdeck config file")
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	return cfg, gormDB, nil
}

func openStore(cfg *config.Config) (*attachment.Store, error) {
	return attachment.NewStore(cfg.Attachments.Dir, cfg.Attachments.MaxBytes, cfg.Server.BasePath+"/uploads")
}

// describeDB names the configured database for messages.
func describeDB(c config.DatabaseConfig) string {
	if c.Driver == config.DriverMySQL {
		return fmt.Sprintf("mysql %s:%d/%s", c.Host, c.Port, c.Name)
	}
	return "sqlite " + c.Path
}

// parseID parses a positional numeric id.
func parseID(raw, what string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return uint(id), nil
}
