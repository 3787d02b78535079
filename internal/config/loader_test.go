package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/citruscircuits/calcserver/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"CALC_CONFIG", "CALC_ADDR", "CALC_LOG_LEVEL", "CALC_STORE_BACKEND", "CALC_MONGO_URI",
	"CALC_QUEUE_SIZE", "CALC_WORKER_COUNT", "CALC_RUN_ON_START", "CALC_RETRY_MAX_ELAPSED_MS", "CALC_RULES_PRESET",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "calcserver-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.RunOnStart, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CALC_ADDR", ":8080")
			_ = os.Setenv("CALC_QUEUE_SIZE", "64")
			_ = os.Setenv("CALC_WORKER_COUNT", "4")
			_ = os.Setenv("CALC_RUN_ON_START", "true")
			_ = os.Setenv("CALC_RETRY_MAX_ELAPSED_MS", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.RunOnStart, convey.ShouldBeTrue)
				convey.So(cfg.RetryMaxElapsedMS, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
store_backend: mongo
mongo_uri: "mongodb://scouting:27017"
mongo_database: "2020cada"
worker_count: 3
schedule_collection: "qual_schedule"
rules_preset: legacy
point_values:
  climb: 30
  park: 4
thresholds:
  climb_rp: 60
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALC_CONFIG", tmpFile)
			_ = os.Setenv("CALC_WORKER_COUNT", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMongo)
				convey.So(cfg.MongoDatabase, convey.ShouldEqual, "2020cada")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.ScheduleCollection, convey.ShouldEqual, "qual_schedule")
				convey.So(cfg.RulesPreset, convey.ShouldEqual, "legacy")
				convey.So(cfg.PointValues, convey.ShouldResemble, map[string]float64{"climb": 30, "park": 4})
				convey.So(cfg.Thresholds, convey.ShouldResemble, map[string]float64{"climb_rp": 60})
			})
		})

		convey.Convey("When the YAML file names an unknown rule", func() {
			tmpFile := createTempConfigFile("point_values:\n  hatch_panel: 2\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALC_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALC_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			_ = os.Setenv("CALC_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CALC_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the mongo backend is chosen without a uri", func() {
			_ = os.Setenv("CALC_STORE_BACKEND", "mongo")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "mongo_uri")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CALC_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}
