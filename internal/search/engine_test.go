package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
	"github.com/reiswijzer/reiswijzer-go/internal/nsapi"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// leg builds a test leg with minute offsets from t0
func leg(origin, dest string, depMin, arrMin int) models.Leg {
	return models.Leg{
		OriginName:    origin,
		DestName:      dest,
		DepartureTime: t0.Add(time.Duration(depMin) * time.Minute),
		ArrivalTime:   t0.Add(time.Duration(arrMin) * time.Minute),
		ProductLabel:  "Intercity",
	}
}

func direct(legs ...models.Leg) models.Option {
	opt := models.FromLegs(models.KindDirect, legs)
	if opt == nil {
		panic("invalid test option")
	}
	return *opt
}

// fakeTrips routes trip searches by "from>to" and records every request
type fakeTrips struct {
	mu       sync.Mutex
	routes   map[string][]models.Option
	errs     map[string]error
	delay    time.Duration
	requests []nsapi.TripRequest
}

func (f *fakeTrips) SearchTrips(ctx context.Context, req nsapi.TripRequest) ([]models.Option, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	key := strings.ToLower(req.From) + ">" + strings.ToLower(req.To)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.routes[key], nil
}

func (f *fakeTrips) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeStations resolves any name to a code derived from the name
type fakeStations struct {
	records map[string][]models.StationRecord
}

func (f *fakeStations) Resolve(ctx context.Context, query string) ([]models.StationRecord, error) {
	key := strings.ToLower(query)
	if recs, ok := f.records[key]; ok {
		return recs, nil
	}
	return []models.StationRecord{{Code: key, DisplayName: query}}, nil
}

func newTestEngine(trips TripSearcher, stations StationResolver) *Engine {
	params := DefaultParams()
	params.Budget = 2 * time.Second
	return New(trips, stations, params)
}

func baseQuery() Query {
	return Query{From: "gvc", To: "rtd", DateTime: t0}
}

func TestSearch_EnoughDirectOptions(t *testing.T) {
	// 12 direct zero-transfer options: the top 10 by score come back and
	// no via exploration is attempted
	var options []models.Option
	for i := 0; i < 12; i++ {
		options = append(options, direct(leg("Den Haag Centraal", "Rotterdam Centraal", i, i+25+i)))
	}

	trips := &fakeTrips{routes: map[string][]models.Option{"gvc>rtd": options}}
	engine := newTestEngine(trips, &fakeStations{})

	got, err := engine.Search(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("Expected 10 options, got %d", len(got))
	}
	if trips.requestCount() != 1 {
		t.Errorf("Expected only the base query, got %d upstream calls", trips.requestCount())
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DurationMinutes > got[i].DurationMinutes {
			t.Errorf("Options not sorted by score at %d", i)
		}
	}
}

func TestSearch_ExploresVias(t *testing.T) {
	// 3 direct options through Gouda; the via search finds a valid
	// combination gvc→gd→rtd
	base := []models.Option{
		direct(leg("Den Haag Centraal", "Gouda", 0, 20), leg("Gouda", "Rotterdam Centraal", 28, 45)),
		direct(leg("Den Haag Centraal", "Gouda", 30, 50), leg("Gouda", "Rotterdam Centraal", 58, 75)),
		direct(leg("Den Haag Centraal", "Rotterdam Centraal", 10, 40)),
	}
	aHalf := []models.Option{
		direct(leg("Den Haag Centraal", "Gouda", 5, 22)),
	}
	bHalf := []models.Option{
		direct(leg("Gouda", "Rotterdam Centraal", 30, 48)),
		// departs before the A arrival: must be rejected
		direct(leg("Gouda", "Rotterdam Centraal", 15, 33)),
		// transfer over 20 minutes: must be rejected
		direct(leg("Gouda", "Rotterdam Centraal", 50, 68)),
	}

	trips := &fakeTrips{routes: map[string][]models.Option{
		"gvc>rtd":   base,
		"gvc>gouda": aHalf,
		"gouda>rtd": bHalf,
	}}
	stations := &fakeStations{records: map[string][]models.StationRecord{
		"gouda": {{Code: "gouda", DisplayName: "Gouda"}},
	}}
	engine := newTestEngine(trips, stations)

	got, err := engine.Search(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var combos int
	for _, opt := range got {
		if opt.Kind != models.KindCombination {
			continue
		}
		combos++
		if len(opt.Legs) != 2 {
			t.Errorf("Expected 2 legs in combination, got %d", len(opt.Legs))
		}
		gap := models.MinutesBetween(opt.Legs[0].ArrivalTime, opt.Legs[1].DepartureTime)
		if gap < 0 || gap > 20 {
			t.Errorf("Combination transfer %d out of bounds", gap)
		}
	}
	if combos != 1 {
		t.Errorf("Expected exactly 1 valid combination, got %d", combos)
	}
	if len(got) > 10 {
		t.Errorf("Expected at most 10 options, got %d", len(got))
	}
}

func TestSearch_NoDuplicateSignatures(t *testing.T) {
	// the combination reconstructs an existing direct journey; it must be
	// deduplicated away
	shared := []models.Leg{
		leg("Den Haag Centraal", "Gouda", 0, 20),
		leg("Gouda", "Rotterdam Centraal", 28, 45),
	}
	base := []models.Option{direct(shared...)}

	trips := &fakeTrips{routes: map[string][]models.Option{
		"gvc>rtd":   base,
		"gvc>gouda": {direct(shared[0])},
		"gouda>rtd": {direct(shared[1])},
	}}
	engine := newTestEngine(trips, &fakeStations{})

	got, err := engine.Search(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	seen := make(map[string]bool)
	for _, opt := range got {
		sig := opt.Signature()
		if seen[sig] {
			t.Errorf("Duplicate signature in response: %s", sig)
		}
		seen[sig] = true
	}
	if len(got) != 1 {
		t.Errorf("Expected the reconstructed journey deduplicated to 1 option, got %d", len(got))
	}
	if got[0].Kind != models.KindDirect {
		t.Error("The direct discovery must win over the combination")
	}
}

func TestSearch_BaseFailureIsFatal(t *testing.T) {
	trips := &fakeTrips{errs: map[string]error{"gvc>rtd": errors.New("upstream down")}}
	engine := newTestEngine(trips, &fakeStations{})

	if _, err := engine.Search(context.Background(), baseQuery()); err == nil {
		t.Fatal("Expected base-query failure to surface")
	}
}

func TestSearch_ViaFailureDropsBranchOnly(t *testing.T) {
	base := []models.Option{
		direct(leg("Den Haag Centraal", "Gouda", 0, 20), leg("Gouda", "Rotterdam Centraal", 28, 45)),
		direct(leg("Den Haag Centraal", "Delft", 5, 15), leg("Delft", "Rotterdam Centraal", 22, 40)),
	}

	trips := &fakeTrips{
		routes: map[string][]models.Option{
			"gvc>rtd":   base,
			"gvc>delft": {direct(leg("Den Haag Centraal", "Delft", 10, 20))},
			"delft>rtd": {direct(leg("Delft", "Rotterdam Centraal", 25, 43))},
		},
		errs: map[string]error{"gvc>gouda": errors.New("via branch down")},
	}
	engine := newTestEngine(trips, &fakeStations{})

	got, err := engine.Search(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("A failing via branch must not abort the search: %v", err)
	}

	var combos int
	for _, opt := range got {
		if opt.Kind == models.KindCombination {
			combos++
		}
	}
	if combos != 1 {
		t.Errorf("Expected the healthy via to contribute 1 combination, got %d", combos)
	}
}

func TestSearch_BudgetBoundsRuntime(t *testing.T) {
	base := []models.Option{
		direct(leg("Den Haag Centraal", "Gouda", 0, 20), leg("Gouda", "Rotterdam Centraal", 28, 45)),
	}

	trips := &fakeTrips{
		routes: map[string][]models.Option{"gvc>rtd": base},
		delay:  80 * time.Millisecond, // every via call crawls
	}
	params := DefaultParams()
	params.Budget = 50 * time.Millisecond
	engine := New(trips, &fakeStations{}, params)

	start := time.Now()
	got, err := engine.Search(context.Background(), baseQuery())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Budget overrun must not be an error: %v", err)
	}
	// base call + budget + at most one in-flight via call allowed to finish
	if elapsed > 500*time.Millisecond {
		t.Errorf("Search took %s, expected it bounded near the budget", elapsed)
	}
	if len(got) != len(base) {
		t.Errorf("Expected the base options to come back, got %d", len(got))
	}
}

func TestDirect(t *testing.T) {
	options := []models.Option{
		direct(leg("Den Haag Centraal", "Rotterdam Centraal", 10, 50)),
		direct(leg("Den Haag Centraal", "Rotterdam Centraal", 0, 25)),
	}
	trips := &fakeTrips{routes: map[string][]models.Option{"gvc>rtd": options}}
	engine := newTestEngine(trips, &fakeStations{})

	got, err := engine.Direct(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Direct: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 options, got %d", len(got))
	}
	if got[0].DurationMinutes != 25 {
		t.Errorf("Expected the shorter journey ranked first, got %d min", got[0].DurationMinutes)
	}
}

func TestViaCandidates(t *testing.T) {
	base := []models.Option{
		direct(leg("A", "Gouda", 0, 20), leg("Gouda", "B", 25, 45)),
		direct(leg("A", "Gouda", 10, 30), leg("Gouda", "B", 35, 55)),
		direct(leg("A", "Delft", 5, 15), leg("Delft", "B", 20, 40)),
	}

	names := viaCandidates(base, 8)
	if len(names) != 2 {
		t.Fatalf("Expected 2 candidates, got %v", names)
	}
	if names[0] != "Gouda" {
		t.Errorf("Expected Gouda first by frequency, got %v", names)
	}

	if got := viaCandidates(base, 1); len(got) != 1 || got[0] != "Gouda" {
		t.Errorf("Expected truncation to keep the most frequent, got %v", got)
	}
}

func TestQuerySignature(t *testing.T) {
	a := Query{From: "gvc", To: "rtd", DateTime: t0}
	b := Query{From: "GVC", To: "RTD", DateTime: t0}
	if a.Signature() != b.Signature() {
		t.Error("Station-code case must not change the signature")
	}

	c := Query{From: "gvc", To: "rtd", DateTime: t0, SearchForArrival: true}
	if a.Signature() == c.Signature() {
		t.Error("The search-direction flag must be part of the signature")
	}
}
