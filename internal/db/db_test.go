package db

import (
	"strings"
	"testing"

	"github.com/zulandar/testdeck/internal/config"
	"github.com/zulandar/testdeck/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		want     string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "testdeck",
			want:     "root@tcp(127.0.0.1:3306)/testdeck?parseTime=true",
		},
		{
			name:     "with password",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "deck", Password: "pw"},
			database: "testdeck_qa",
			want:     "deck:pw@tcp(10.0.0.5:3307)/testdeck_qa?parseTime=true",
		},
		{
			name:     "admin without database",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			database: "",
			want:     "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 10 {
		t.Errorf("AllModels() returned %d models, want 10", got)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestConnectMySQL_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := ConnectMySQL(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "root", Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "root"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func TestOpenSQLite_MigrateAndForeignKeys(t *testing.T) {
	gormDB, err := OpenSQLite(":memory:", false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	var fk int
	if err := gormDB.Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}

	// A step pointing at a missing case must be rejected by the store.
	step := models.TestCaseStep{TestCaseID: 999, Position: 1}
	if err := gormDB.Create(&step).Error; err == nil {
		t.Error("expected foreign key violation for orphan step")
	}
}

func TestConnect_SQLiteFromConfig(t *testing.T) {
	gormDB, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if gormDB.Dialector.Name() != "sqlite" {
		t.Errorf("dialect = %q, want sqlite", gormDB.Dialector.Name())
	}
}

func TestSeedSettings_DoesNotOverwrite(t *testing.T) {
	gormDB, err := OpenSQLite(":memory:", false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	cfg := config.Default()
	cfg.Jira.BaseURL = "https://first.atlassian.net"
	if err := SeedSettings(gormDB, cfg); err != nil {
		t.Fatalf("SeedSettings: %v", err)
	}

	cfg.Jira.BaseURL = "https://second.atlassian.net"
	if err := SeedSettings(gormDB, cfg); err != nil {
		t.Fatalf("SeedSettings (again): %v", err)
	}

	var s models.Setting
	if err := gormDB.Where(&models.Setting{Key: models.SettingJiraBaseURL}).First(&s).Error; err != nil {
		t.Fatalf("read setting: %v", err)
	}
	if s.Value != "https://first.atlassian.net" {
		t.Errorf("Value = %q, want first seeded value", s.Value)
	}
}
