package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tutorjudge/internal/judge/model"
)

func TestLoadAppConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge.yaml")
	data := `
server:
  addr: "127.0.0.1:9000"
judge0:
  maxAttempts: 5
  languageIds:
    python: 100
local:
  wasmModules:
    - language: python
      path: /opt/wasm/python.wasm
      args: ["python", "-c", "{source}"]
submission:
  workerPoolSize: 8
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JUDGE0_API_KEY", "")
	t.Setenv("RAPIDAPI_KEY", "secret")

	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("loadAppConfig() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Judge0.APIKey != "secret" || cfg.Judge0.MaxAttempts != 5 || cfg.Judge0.LanguageIDs["python"] != 100 {
		t.Fatalf("unexpected judge0 config: %+v", cfg.Judge0)
	}
	if len(cfg.Local.WasmModules) != 1 || cfg.Local.WasmModules[0].Language != model.Python {
		t.Fatalf("unexpected wasm modules: %+v", cfg.Local.WasmModules)
	}
	if cfg.Submission.WorkerPoolSize != 8 || cfg.Status.FinalTopic != "judge.status.final" || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.PoolSize != 0 {
		t.Fatalf("redis should stay disabled: %+v", cfg.Redis)
	}
}

func TestLoadAppConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JUDGE0_API_KEY", "")
	t.Setenv("RAPIDAPI_KEY", "")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	cfg, err := loadAppConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadAppConfig() error = %v", err)
	}
	if cfg.Judge0.APIKey != "" || cfg.Server.Addr != defaultHTTPAddr {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" || cfg.Redis.PoolSize == 0 {
		t.Fatalf("redis defaults not applied: %+v", cfg.Redis)
	}
}

func TestApplyEnvKeepsConfiguredKey(t *testing.T) {
	cfg := AppConfig{}
	cfg.Judge0.APIKey = "from-file"
	env := map[string]string{"JUDGE0_API_KEY": "from-env", "KAFKA_BROKERS": "a:9092,b:9092"}
	applyEnv(&cfg, func(k string) string { return env[k] })
	if cfg.Judge0.APIKey != "from-file" {
		t.Fatalf("file key overridden: %q", cfg.Judge0.APIKey)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}
