package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/solara/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ModelsDir, convey.ShouldEqual, "models")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 2000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SOLARA_ADDR", ":9000")
			_ = os.Setenv("SOLARA_MODELS_DIR", "/srv/models")
			_ = os.Setenv("SOLARA_WARMUP", "false")
			_ = os.Setenv("SOLARA_WORKER_COUNT", "3")
			_ = os.Setenv("SOLARA_LOG_FORMAT", "json")

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.ModelsDir, convey.ShouldEqual, "/srv/models")
				convey.So(cfg.Warmup, convey.ShouldBeFalse)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
models_dir: "artifacts"
queue_size: 500
stream_enabled: true
stream_brokers: "kafka:9092"
`)
			_ = os.Setenv("SOLARA_CONFIG", path)

			cfg, err := config.Load()

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ModelsDir, convey.ShouldEqual, "artifacts")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.StreamEnabled, convey.ShouldBeTrue)
				convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"kafka:9092"})
				convey.So(cfg.StreamTopic, convey.ShouldEqual, "solar.readings")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
queue_size: 500
`)
			_ = os.Setenv("SOLARA_CONFIG", path)
			_ = os.Setenv("SOLARA_ADDR", ":7070")

			cfg, err := config.Load()

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("SOLARA_CONFIG", path)

			cfg, err := config.Load()

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SOLARA_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load()

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown log format", func() {
			_ = os.Setenv("SOLARA_LOG_FORMAT", "xml")

			cfg, err := config.Load()

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "log_format")
			})
		})

		convey.Convey("When streaming is enabled without brokers", func() {
			_ = os.Setenv("SOLARA_STREAM_ENABLED", "true")
			_ = os.Setenv("SOLARA_STREAM_BROKERS", " , ")

			cfg, err := config.Load()

			convey.Convey("Then it should refuse the configuration", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solara.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"SOLARA_CONFIG",
		"SOLARA_ADDR",
		"SOLARA_MODELS_DIR",
		"SOLARA_WARMUP",
		"SOLARA_WORKER_COUNT",
		"SOLARA_LOG_FORMAT",
		"SOLARA_STREAM_ENABLED",
		"SOLARA_STREAM_BROKERS",
	} {
		_ = os.Unsetenv(name)
	}
}
