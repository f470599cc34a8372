package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/motionlab/stride/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	convey.Convey("Given the configuration loader", t, func() {
		ctx := context.Background()

		convey.Convey("When no overrides are present", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.SampleQueueSize, convey.ShouldEqual, 4096)
				convey.So(cfg.MaxSessionListLimit, convey.ShouldEqual, 100)
				convey.So(cfg.IMUSampleRateHz, convey.ShouldEqual, 100)
				convey.So(cfg.SwayWindowSec, convey.ShouldEqual, 5)
				convey.So(cfg.HarmonicFundamentalHz, convey.ShouldEqual, 1.0)
				convey.So(cfg.MQTTEnabled, convey.ShouldBeFalse)
				convey.So(cfg.ModelURL, convey.ShouldBeEmpty)
				convey.So(cfg.ModelTimeoutMs, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When environment variables override defaults", func() {
			t.Setenv("STRIDE_ADDR", ":7070")
			t.Setenv("STRIDE_LOG_LEVEL", "debug")
			t.Setenv("STRIDE_IMU_SAMPLE_RATE_HZ", "60")
			cfg, err := config.Load(ctx)

			convey.Convey("Then the env layer wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.IMUSampleRateHz, convey.ShouldEqual, 60)
				convey.So(cfg.SampleQueueSize, convey.ShouldEqual, 4096)
			})
		})

		convey.Convey("When a config file is provided", func() {
			// t.Setenv cleanups run at test end, not between convey branches,
			// so drop the override leaked from the env-layer branch above.
			os.Unsetenv("STRIDE_ADDR")
			path := filepath.Join(t.TempDir(), "stride.yaml")
			body := "addr: \":8088\"\nsway_window_sec: 10\n"
			convey.So(os.WriteFile(path, []byte(body), 0o600), convey.ShouldBeNil)
			t.Setenv("STRIDE_CONFIG", path)
			cfg, err := config.Load(ctx)

			convey.Convey("Then file values layer over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8088")
				convey.So(cfg.SwayWindowSec, convey.ShouldEqual, 10)
			})

			convey.Convey("And env still outranks the file", func() {
				t.Setenv("STRIDE_ADDR", ":9999")
				cfg, err = config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9999")
			})
		})

		convey.Convey("When the config file is missing", func() {
			t.Setenv("STRIDE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
			_, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When validation fails", func() {
			convey.Convey("An empty addr is rejected", func() {
				t.Setenv("STRIDE_ADDR", "")
				_, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
			})
			convey.Convey("A non-positive sensor rate is rejected", func() {
				t.Setenv("STRIDE_IMU_SAMPLE_RATE_HZ", "0")
				_, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
			})
			convey.Convey("A non-positive stride fundamental is rejected", func() {
				t.Setenv("STRIDE_HARMONIC_FUNDAMENTAL_HZ", "-1")
				_, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
			})
			convey.Convey("A model endpoint with a non-positive timeout is rejected", func() {
				t.Setenv("STRIDE_MODEL_URL", "http://localhost:5000/predict")
				t.Setenv("STRIDE_MODEL_TIMEOUT_MS", "0")
				_, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
