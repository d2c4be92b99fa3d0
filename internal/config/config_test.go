package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
server:
  port: 9090
  base_path: /tcm/api/

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: deck
  password: s3cret
  name: testdeck_prod
  debug: true

attachments:
  dir: /var/lib/testdeck/uploads
  max_bytes: 1048576
  gc_schedule: "*/30 * * * *"
  gc_grace: 2h

jira:
  base_url: https://acme.atlassian.net

notify:
  slack:
    token: xoxb-123
    channel: C0QA
  discord:
    token: disc-456
    channel: "998877"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/tcm/api" {
		t.Errorf("Server.BasePath = %q, want %q", cfg.Server.BasePath, "/tcm/api")
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMySQL)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database addr = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "deck" || cfg.Database.Password != "s3cret" {
		t.Errorf("Database credentials = %q/%q", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Database.Name != "testdeck_prod" {
		t.Errorf("Database.Name = %q, want testdeck_prod", cfg.Database.Name)
	}
	if !cfg.Database.Debug {
		t.Error("Database.Debug = false, want true")
	}
	if cfg.Attachments.Dir != "/var/lib/testdeck/uploads" {
		t.Errorf("Attachments.Dir = %q", cfg.Attachments.Dir)
	}
	if cfg.Attachments.MaxBytes != 1<<20 {
		t.Errorf("Attachments.MaxBytes = %d, want %d", cfg.Attachments.MaxBytes, 1<<20)
	}
	if cfg.Attachments.GCSchedule != "*/30 * * * *" {
		t.Errorf("Attachments.GCSchedule = %q", cfg.Attachments.GCSchedule)
	}
	if cfg.Attachments.GCGrace != 2*time.Hour {
		t.Errorf("Attachments.GCGrace = %v, want 2h", cfg.Attachments.GCGrace)
	}
	if cfg.Jira.BaseURL != "https://acme.atlassian.net" {
		t.Errorf("Jira.BaseURL = %q", cfg.Jira.BaseURL)
	}
	if !cfg.Notify.Slack.Enabled() || !cfg.Notify.Discord.Enabled() {
		t.Error("expected both notifiers enabled")
	}
}

func TestParse_EmptyConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/api" {
		t.Errorf("Server.BasePath = %q, want /api (default)", cfg.Server.BasePath)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "testdeck.db" {
		t.Errorf("Database.Path = %q, want testdeck.db (default)", cfg.Database.Path)
	}
	if cfg.Attachments.Dir != "uploads" {
		t.Errorf("Attachments.Dir = %q, want uploads (default)", cfg.Attachments.Dir)
	}
	if cfg.Attachments.MaxBytes != DefaultMaxUploadBytes {
		t.Errorf("Attachments.MaxBytes = %d, want %d (default)", cfg.Attachments.MaxBytes, DefaultMaxUploadBytes)
	}
	if cfg.Attachments.GCSchedule != "0 3 * * *" {
		t.Errorf("Attachments.GCSchedule = %q (default)", cfg.Attachments.GCSchedule)
	}
	if cfg.Attachments.GCGrace != 24*time.Hour {
		t.Errorf("Attachments.GCGrace = %v, want 24h (default)", cfg.Attachments.GCGrace)
	}
	if cfg.Notify.Slack.Enabled() || cfg.Notify.Discord.Enabled() {
		t.Error("notifiers should be disabled by default")
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("addr = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "root" {
		t.Errorf("User = %q, want root", cfg.Database.User)
	}
	if cfg.Database.Name != "testdeck" {
		t.Errorf("Name = %q, want testdeck", cfg.Database.Name)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Path = %q, want empty for mysql", cfg.Database.Path)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown driver",
			yaml: "database:\n  driver: postgres\n",
			want: `database.driver "postgres" is not supported`,
		},
		{
			name: "port out of range",
			yaml: "server:\n  port: 70000\n",
			want: "server.port 70000 out of range",
		},
		{
			name: "bad cron",
			yaml: "attachments:\n  gc_schedule: every day\n",
			want: "attachments.gc_schedule",
		},
		{
			name: "slack without channel",
			yaml: "notify:\n  slack:\n    token: xoxb-1\n",
			want: "notify.slack needs both token and channel",
		},
		{
			name: "discord without token",
			yaml: "notify:\n  discord:\n    channel: \"42\"\n",
			want: "notify.discord needs both token and channel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsReportedTogether(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: -1\ndatabase:\n  driver: oracle\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want to contain %q", err.Error(), want)
		}
	}
}

func TestParse_GCScheduleOff(t *testing.T) {
	cfg, err := Parse([]byte("attachments:\n  gc_schedule: \"off\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Attachments.GCSchedule != "off" {
		t.Errorf("GCSchedule = %q, want off", cfg.Attachments.GCSchedule)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testdeck.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 || cfg.Database.Driver != DriverSQLite {
		t.Errorf("Default() = %+v", cfg)
	}
}
