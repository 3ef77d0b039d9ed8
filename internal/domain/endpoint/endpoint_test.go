package endpoint_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/okian/flightboard/internal/domain/endpoint"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSet(t *testing.T) {
	Convey("Given a base URL", t, func() {
		Convey("When building the set without overrides", func() {
			set, err := endpoint.NewSet("http://20.55.37.190/", nil)
			So(err, ShouldBeNil)

			Convey("Then every endpoint resolves against the base", func() {
				So(set.MustGet(endpoint.ProcessingStats).URL, ShouldEqual, "http://20.55.37.190/processing/stats")
				So(set.MustGet(endpoint.AnalyzerStats).URL, ShouldEqual, "http://20.55.37.190/analyzer/stats")
				So(set.MustGet(endpoint.FlightEvent).URL, ShouldEqual, "http://20.55.37.190/analyzer/flights/schedule/random")
				So(set.MustGet(endpoint.PassengerEvent).URL, ShouldEqual, "http://20.55.37.190/analyzer/passenger/checkin/random")
				So(set.MustGet(endpoint.ConsistencyUpdate).URL, ShouldEqual, "http://20.55.37.190/consistency_check/update")
				So(set.MustGet(endpoint.ConsistencyChecks).URL, ShouldEqual, "http://20.55.37.190/consistency_check/checks")
			})

			Convey("And methods and regions are bound", func() {
				So(set.MustGet(endpoint.ConsistencyUpdate).Method, ShouldEqual, http.MethodPost)
				So(set.MustGet(endpoint.ConsistencyUpdate).Region, ShouldBeEmpty)
				So(set.MustGet(endpoint.FlightEvent).Region, ShouldEqual, endpoint.RegionFlightEvent)
				So(set.MustGet(endpoint.ConsistencyChecks).Region, ShouldEqual, endpoint.RegionConsistencyStats)
			})

			Convey("And All lists the polled endpoints first", func() {
				all := set.All()
				So(len(all), ShouldEqual, 6)
				So(all[0].Name, ShouldEqual, endpoint.ProcessingStats)
				So(all[5].Name, ShouldEqual, endpoint.ConsistencyChecks)
			})
		})

		Convey("When an override is given", func() {
			set, err := endpoint.NewSet("http://gateway", map[string]string{
				"analyzer-stats": "http://analyzer:8110/stats",
			})

			Convey("Then it replaces the derived URL", func() {
				So(err, ShouldBeNil)
				So(set.MustGet(endpoint.AnalyzerStats).URL, ShouldEqual, "http://analyzer:8110/stats")
				So(set.MustGet(endpoint.ProcessingStats).URL, ShouldEqual, "http://gateway/processing/stats")
			})
		})

		Convey("When an override names an unknown endpoint", func() {
			_, err := endpoint.NewSet("http://gateway", map[string]string{"storage-count": "http://x/count"})

			Convey("Then the set is rejected", func() {
				So(errors.Is(err, endpoint.ErrUnknownEndpoint), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "invalid endpoint set")
			})
		})

		Convey("When an override is relative", func() {
			_, err := endpoint.NewSet("http://gateway", map[string]string{"analyzer-stats": "/stats"})

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the base URL is relative", func() {
			_, err := endpoint.NewSet("gateway/api", nil)

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSetGet(t *testing.T) {
	Convey("Given a set", t, func() {
		set, err := endpoint.NewSet("http://gateway", nil)
		So(err, ShouldBeNil)

		Convey("When asking for an unknown name", func() {
			_, err := set.Get("storage-events")

			Convey("Then ErrUnknownEndpoint is returned", func() {
				So(errors.Is(err, endpoint.ErrUnknownEndpoint), ShouldBeTrue)
			})
			Convey("And MustGet panics", func() {
				So(func() { set.MustGet("storage-events") }, ShouldPanic)
			})
		})
	})
}
