// Package endpoint describes the upstream URL set the dashboard talks to.
package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ubuntu/decorate"
)

// ErrUnknownEndpoint is returned for logical names outside the fixed set.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Name is the logical name of an upstream endpoint.
type Name string

// Logical endpoint names.
const (
	ProcessingStats   Name = "processing-stats"
	AnalyzerStats     Name = "analyzer-stats"
	FlightEvent       Name = "flight-event"
	PassengerEvent    Name = "passenger-event"
	ConsistencyUpdate Name = "consistency-update"
	ConsistencyChecks Name = "consistency-checks"
)

// Display region ids.
const (
	RegionProcessingStats  = "processing-stats"
	RegionAnalyzerStats    = "analyzer-stats"
	RegionFlightEvent      = "event-flight"
	RegionPassengerEvent   = "event-passenger"
	RegionConsistencyStats = "consistency-stats"
)

// Endpoint is one upstream call and the region its payload feeds.
// Region is empty for endpoints whose response is never displayed.
type Endpoint struct {
	Name   Name
	Method string
	URL    string
	Region string
}

type defaults struct {
	method string
	path   string
	region string
}

var known = map[Name]defaults{
	ProcessingStats:   {http.MethodGet, "/processing/stats", RegionProcessingStats},
	AnalyzerStats:     {http.MethodGet, "/analyzer/stats", RegionAnalyzerStats},
	FlightEvent:       {http.MethodGet, "/analyzer/flights/schedule/random", RegionFlightEvent},
	PassengerEvent:    {http.MethodGet, "/analyzer/passenger/checkin/random", RegionPassengerEvent},
	ConsistencyUpdate: {http.MethodPost, "/consistency_check/update", ""},
	ConsistencyChecks: {http.MethodGet, "/consistency_check/checks", RegionConsistencyStats},
}

// Polled lists the endpoints refreshed on every poll cycle, in page order.
var Polled = []Name{ProcessingStats, AnalyzerStats, FlightEvent, PassengerEvent}

// Regions lists every display region in page order.
var Regions = []string{
	RegionProcessingStats,
	RegionAnalyzerStats,
	RegionFlightEvent,
	RegionPassengerEvent,
	RegionConsistencyStats,
}

// Set is the immutable endpoint URL set built at startup.
type Set struct {
	byName map[Name]Endpoint
}

// NewSet resolves every known endpoint against baseURL, applying per-name
// URL overrides. Unknown override names are rejected.
func NewSet(baseURL string, overrides map[string]string) (_ *Set, err error) {
	defer decorate.OnError(&err, "invalid endpoint set")

	base, err := parseAbsolute(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	for name := range overrides {
		if _, ok := known[Name(name)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
		}
	}

	s := &Set{byName: make(map[Name]Endpoint, len(known))}
	for name, d := range known {
		raw := strings.TrimRight(base.String(), "/") + d.path
		if o, ok := overrides[string(name)]; ok {
			u, err := parseAbsolute(o)
			if err != nil {
				return nil, fmt.Errorf("endpoint %s: %w", name, err)
			}
			raw = u.String()
		}
		s.byName[name] = Endpoint{Name: name, Method: d.method, URL: raw, Region: d.region}
	}
	return s, nil
}

// Get returns the endpoint registered under name.
func (s *Set) Get(name Name) (Endpoint, error) {
	e, ok := s.byName[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return e, nil
}

// MustGet is Get for names from the fixed set; it panics on anything else.
func (s *Set) MustGet(name Name) Endpoint {
	e, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return e
}

// All returns every endpoint, polled ones first then the consistency pair.
func (s *Set) All() []Endpoint {
	out := make([]Endpoint, 0, len(s.byName))
	for _, n := range append(append([]Name{}, Polled...), ConsistencyUpdate, ConsistencyChecks) {
		out = append(out, s.byName[n])
	}
	return out
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}
