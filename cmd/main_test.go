package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/wcalive/internal/config"
	"github.com/okian/wcalive/internal/domain/types"
	"github.com/okian/wcalive/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a server built from environment configuration", t, func() {
		_ = os.Setenv("WCALIVE_QUEUE_SIZE", "100")
		_ = os.Setenv("WCALIVE_WORKER_COUNT", "2")
		_ = os.Setenv("WCALIVE_MAX_RESULTS_LIMIT", "10")
		defer func() {
			_ = os.Unsetenv("WCALIVE_QUEUE_SIZE")
			_ = os.Unsetenv("WCALIVE_WORKER_COUNT")
			_ = os.Unsetenv("WCALIVE_MAX_RESULTS_LIMIT")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)

		svc := newService(cfg, logger.Get())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		ts := httptest.NewServer(newMux(cfg, svc))
		defer ts.Close()

		convey.Convey("When a result is submitted over HTTP", func() {
			body := `{
				"submission_id": "main-1",
				"round_id": "333-r1",
				"person_id": "p1",
				"event_id": "333",
				"attempts": [900, 800, 700, 1000, 600],
				"format": {"number_of_attempts": 5, "sort_by": "average"}
			}`
			resp, err := http.Post(ts.URL+"/results", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			convey.Convey("Then its rank becomes readable", func() {
				var row types.Row
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					r, err := http.Get(ts.URL + "/rank/333-r1/p1")
					convey.So(err, convey.ShouldBeNil)
					if r.StatusCode == http.StatusOK {
						convey.So(json.NewDecoder(r.Body).Decode(&row), convey.ShouldBeNil)
						_ = r.Body.Close()
						break
					}
					_ = r.Body.Close()
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(row.Rank, convey.ShouldEqual, 1)
				convey.So(row.Formatted.Average, convey.ShouldEqual, "8.00")
			})

			convey.Convey("Then the configured result limit is enforced", func() {
				r, err := http.Get(ts.URL + "/rounds/333-r1/results?limit=11")
				convey.So(err, convey.ShouldBeNil)
				_ = r.Body.Close()
				convey.So(r.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When the docs are requested", func() {
			r, err := http.Get(ts.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = r.Body.Close()

			convey.Convey("Then they are served", func() {
				convey.So(r.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.Convey("Then it returns without panicking", func() {
				convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When metrics are updated directly", func() {
			svc := newService(config.New(), logger.Get())

			convey.Convey("Then neither update panics", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the service metrics updater runs until its context ends", func() {
			svc := newService(config.New(), logger.Get())
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.Convey("Then it returns without panicking", func() {
				convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			})
		})
	})
}
