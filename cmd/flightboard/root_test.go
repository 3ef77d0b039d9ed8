package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/flightboard/internal/adapters/console"
	"github.com/okian/flightboard/internal/config"
)

func TestApplyFlags(t *testing.T) {
	Convey("Given the root command", t, func() {
		cmd := newRootCmd()

		Convey("Flags that were not given leave the configuration alone", func() {
			cfg := config.New()
			So(cmd.ParseFlags([]string{}), ShouldBeNil)
			So(applyFlags(cmd, &flags{ui: "console"}, cfg), ShouldBeNil)
			So(cfg.UI, ShouldEqual, config.UIWeb)
		})

		Convey("Given flags override the configuration", func() {
			cfg := config.New()
			So(cmd.ParseFlags([]string{"--ui", "both", "--log-level", "debug", "--addr", ":8088"}), ShouldBeNil)
			f := flags{}
			f.ui, _ = cmd.Flags().GetString("ui")
			f.logLevel, _ = cmd.Flags().GetString("log-level")
			f.addr, _ = cmd.Flags().GetString("addr")

			So(applyFlags(cmd, &f, cfg), ShouldBeNil)
			So(cfg.UI, ShouldEqual, config.UIBoth)
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.Addr, ShouldEqual, ":8088")
		})

		Convey("An unknown ui is rejected", func() {
			cfg := config.New()
			So(cmd.ParseFlags([]string{"--ui", "tv"}), ShouldBeNil)
			err := applyFlags(cmd, &flags{ui: "tv"}, cfg)
			So(err, ShouldNotBeNil)
		})

		Convey("Positional arguments are rejected", func() {
			cmd.SetArgs([]string{"extra"})
			So(cmd.Execute(), ShouldNotBeNil)
		})
	})
}

func TestRunWithConsole(t *testing.T) {
	for _, ui := range []string{config.UIConsole, config.UIBoth} {
		Convey("Given the "+ui+" renderer on a simulated screen", t, func() {
			var hits atomic.Int32
			upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"count":5}`))
			}))
			Reset(upstreamSrv.Close)

			cfg := config.New()
			cfg.UI = ui
			cfg.Addr = "127.0.0.1:0"
			cfg.BaseURL = upstreamSrv.URL

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() {
				done <- run(ctx, cfg, console.WithScreen(tcell.NewSimulationScreen("UTF-8")))
			}()

			Convey("Then the poller starts and reaches the upstream", func() {
				deadline := time.Now().Add(3 * time.Second)
				for hits.Load() == 0 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(hits.Load(), ShouldBeGreaterThan, 0)

				Convey("And cancelling shuts everything down", func() {
					cancel()
					select {
					case err := <-done:
						So(err, ShouldBeNil)
					case <-time.After(5 * time.Second):
						So("run did not return", ShouldBeEmpty)
					}
				})
			})
		})
	}
}
