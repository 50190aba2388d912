package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_TYPE", "")
	t.Setenv("DB_CONNECTION", "")
	t.Setenv("ARCHIVE_AFTER_DAYS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.DBType != "sqlite" {
		t.Errorf("db type = %q", cfg.DBType)
	}
	if cfg.DBConnection != "homewright.sqlite" {
		t.Errorf("db connection = %q", cfg.DBConnection)
	}
	if cfg.ArchiveAfter != 0 {
		t.Errorf("archive after = %v, want unset", cfg.ArchiveAfter)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_CONNECTION", "host=db user=app dbname=homewright")
	t.Setenv("ARCHIVE_AFTER_DAYS", "30")

	cfg := Load()
	if cfg.Port != "9090" || cfg.DBType != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ArchiveAfter != 30*24*time.Hour {
		t.Errorf("archive after = %v", cfg.ArchiveAfter)
	}
}

func TestLoad_BadArchiveDays(t *testing.T) {
	t.Setenv("ARCHIVE_AFTER_DAYS", "not-a-number")
	if cfg := Load(); cfg.ArchiveAfter != 0 {
		t.Errorf("invalid value should leave the window unset, got %v", cfg.ArchiveAfter)
	}
}
