package config

import "testing"

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != StorageSQLite || cfg.SQLitePath != "./machinecore.db" {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.ArchiveDriver != ArchiveFS || cfg.ArchiveFSRoot != "./archive" {
		t.Fatalf("unexpected archive defaults: %+v", cfg)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Fatalf("expected default region, got %q", cfg.S3.Region)
	}
	if cfg.CacheSize != 1024 || cfg.SaveConcurrency != 4 || cfg.MetricsNamespace != "machinecore" || cfg.MetricsExporter != MetricsPrometheus {
		t.Fatalf("unexpected tuning defaults: %+v", cfg)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"MACHINECORE_STORAGE_DRIVER":            " Postgres ",
		"MACHINECORE_POSTGRES_DSN":              "postgres://localhost/machines",
		"MACHINECORE_ARCHIVE_DRIVER":            "s3",
		"MACHINECORE_ARCHIVE_S3_BUCKET":         "snapshots",
		"MACHINECORE_ARCHIVE_S3_ENDPOINT":       "http://127.0.0.1:9000",
		"MACHINECORE_ARCHIVE_S3_USE_PATH_STYLE": "true",
		"MACHINECORE_SAVE_CONCURRENCY":          "16",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != StoragePostgres {
		t.Fatalf("expected postgres, got %q", cfg.StorageDriver)
	}
	if cfg.S3.Bucket != "snapshots" || !cfg.S3.UsePathStyle || cfg.S3.Endpoint != "http://127.0.0.1:9000" {
		t.Fatalf("unexpected s3 config: %+v", cfg.S3)
	}
	if cfg.SaveConcurrency != 16 {
		t.Fatalf("expected concurrency 16, got %d", cfg.SaveConcurrency)
	}
}

func TestLoadFromValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage": {"MACHINECORE_STORAGE_DRIVER": "mongo"},
		"postgres no dsn": {"MACHINECORE_STORAGE_DRIVER": "postgres"},
		"unknown archive": {"MACHINECORE_ARCHIVE_DRIVER": "tape"},
		"s3 no bucket":    {"MACHINECORE_ARCHIVE_DRIVER": "s3"},
		"zero cache":      {"MACHINECORE_CACHE_SIZE": "0"},
		"unknown metrics": {"MACHINECORE_METRICS_EXPORTER": "statsd"},
		"bad concurrency": {"MACHINECORE_SAVE_CONCURRENCY": "many"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(vars); err == nil {
				t.Fatalf("expected error for %v", vars)
			}
		})
	}
}

func TestEnviron(t *testing.T) {
	t.Setenv("MACHINECORE_LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_VAR", "x")
	vars := Environ()
	if vars["MACHINECORE_LOG_LEVEL"] != "debug" {
		t.Fatalf("expected log level in environ, got %v", vars)
	}
	if _, ok := vars["UNRELATED_VAR"]; ok {
		t.Fatalf("unexpected unrelated var")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
}
