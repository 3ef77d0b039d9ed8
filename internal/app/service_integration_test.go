package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/flightboard/internal/adapters/upstream"
	service "github.com/okian/flightboard/internal/app"
	"github.com/okian/flightboard/internal/domain/endpoint"
	"github.com/okian/flightboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// pipeline fakes the gateway in front of the processing, analyzer and
// consistency-check services.
type pipeline struct {
	mu    sync.Mutex
	paths []string
}

func (p *pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.paths = append(p.paths, r.Method+" "+r.URL.Path)
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /processing/stats":
		_, _ = w.Write([]byte(`{"count": 5}`))
	case "GET /analyzer/stats":
		// Hijack and drop the connection to simulate a network failure.
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	case "GET /analyzer/flights/schedule/random":
		_, _ = w.Write([]byte(`{"flight_id": "AC101", "trace_id": 7}`))
	case "GET /analyzer/passenger/checkin/random":
		_, _ = w.Write([]byte(`{"passenger_id": "P-1", "trace_id": 8}`))
	case "POST /consistency_check/update":
		_, _ = w.Write([]byte(`{"processing_time_ms": 12}`))
	case "GET /consistency_check/checks":
		_, _ = w.Write([]byte(`{"not_in_db": [], "not_in_queue": []}`))
	default:
		http.NotFound(w, r)
	}
}

func (p *pipeline) requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service wired to a fake pipeline over HTTP", t, func() {
		backend := &pipeline{}
		srv := httptest.NewServer(backend)
		defer srv.Close()

		set, err := endpoint.NewSet(srv.URL, nil)
		So(err, ShouldBeNil)
		svc := service.New(set, upstream.NewClient(upstream.WithTimeout(2*time.Second)),
			service.WithLogger(logger.Named("dashboard")),
		)
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a poll cycle completes", func() {
			<-svc.RefreshAll(ctx)

			Convey("Then JSON payloads are rendered compact", func() {
				So(regionText(svc, "processing-stats"), ShouldEqual, `{"count":5}`)
				So(regionText(svc, "event-flight"), ShouldEqual, `{"flight_id":"AC101","trace_id":7}`)
				So(regionText(svc, "event-passenger"), ShouldEqual, `{"passenger_id":"P-1","trace_id":8}`)
			})

			Convey("And the dropped connection becomes a banner while its region stays empty", func() {
				So(regionText(svc, "analyzer-stats"), ShouldBeEmpty)
				banners := svc.Board().Banners()
				So(banners, ShouldHaveLength, 1)
				So(banners[0].Message, ShouldContainSubstring, "request failed")
			})
		})

		Convey("When the consistency form is submitted", func() {
			So(svc.RunConsistencyCheck(ctx), ShouldBeNil)

			Convey("Then update precedes checks and the checks are displayed", func() {
				So(backend.requests(), ShouldResemble, []string{
					"POST /consistency_check/update",
					"GET /consistency_check/checks",
				})
				So(regionText(svc, "consistency-stats"), ShouldEqual, `{"not_in_db":[],"not_in_queue":[]}`)
			})
		})
	})
}
