package search

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
	"github.com/reiswijzer/reiswijzer-go/internal/nsapi"
)

// TripSearcher runs one upstream trip search
type TripSearcher interface {
	SearchTrips(ctx context.Context, req nsapi.TripRequest) ([]models.Option, error)
}

// StationResolver resolves a station name to candidate records
type StationResolver interface {
	Resolve(ctx context.Context, query string) ([]models.StationRecord, error)
}

// Params are the engine's tuning constants. The transfer penalty is a
// heuristic carried over as configuration, not inferred intent.
type Params struct {
	Target      int           // result count to aim for
	MaxVia      int           // via stations to explore
	TopA        int           // first-half options kept per via
	TopB        int           // second-half options kept per A option
	MaxTransfer time.Duration // longest acceptable transfer at the via
	Budget      time.Duration // wall-clock budget for via exploration
	BufferCap   int           // combination buffer high-water mark
	BufferTrim  int           // buffer size after a trim

	TransferThresholdMin  int
	TransferPenaltyFactor int
}

// DefaultParams returns the engine defaults
func DefaultParams() Params {
	return Params{
		Target:                10,
		MaxVia:                8,
		TopA:                  5,
		TopB:                  8,
		MaxTransfer:           20 * time.Minute,
		Budget:                15 * time.Second,
		BufferCap:             80,
		BufferTrim:            55,
		TransferThresholdMin:  10,
		TransferPenaltyFactor: 2,
	}
}

// Query is one journey search request
type Query struct {
	From             string
	To               string
	DateTime         time.Time
	SearchForArrival bool
}

// Signature is the full query tuple, including the search-direction flag
func (q Query) Signature() string {
	return strings.ToLower(q.From) + "|" + strings.ToLower(q.To) + "|" +
		q.DateTime.UTC().Format(time.RFC3339) + "|" + strconv.FormatBool(q.SearchForArrival)
}

// Engine is the combination search orchestrator: it runs the base query
// and, when that yields too few results, synthesizes extra journeys by
// joining two searches at a via station.
type Engine struct {
	trips    TripSearcher
	stations StationResolver
	params   Params
}

// New creates a new engine
func New(trips TripSearcher, stations StationResolver, params Params) *Engine {
	return &Engine{trips: trips, stations: stations, params: params}
}

// Direct runs the base query only: normalize, rank, truncate.
func (e *Engine) Direct(ctx context.Context, q Query) ([]models.Option, error) {
	base, err := e.trips.SearchTrips(ctx, nsapi.TripRequest{
		From:             q.From,
		To:               q.To,
		DateTime:         q.DateTime,
		SearchForArrival: q.SearchForArrival,
	})
	if err != nil {
		return nil, err
	}
	return e.rank(base), nil
}

// Search runs the base query and, when it comes up short of Target,
// explores via stations under the wall-clock budget. A budget overrun is
// never an error, only reduced completeness; a base-query failure is fatal.
func (e *Engine) Search(ctx context.Context, q Query) ([]models.Option, error) {
	base, err := e.trips.SearchTrips(ctx, nsapi.TripRequest{
		From:             q.From,
		To:               q.To,
		DateTime:         q.DateTime,
		SearchForArrival: q.SearchForArrival,
	})
	if err != nil {
		return nil, err
	}

	if len(base) >= e.params.Target {
		return e.rank(base), nil
	}

	deadline := time.Now().Add(e.params.Budget)
	combos := e.exploreVias(ctx, q, base, deadline)

	merged := dedupe(append(append([]models.Option{}, base...), combos...))
	return e.rank(merged), nil
}

// exploreVias fans out over the most frequent intermediate stops of the
// base trips. Each via branch fails independently: an upstream error there
// drops only that branch's contribution.
func (e *Engine) exploreVias(ctx context.Context, q Query, base []models.Option, deadline time.Time) []models.Option {
	names := viaCandidates(base, e.params.MaxVia)
	if len(names) == 0 {
		return nil
	}

	codes := e.resolveVias(ctx, names, q, deadline)

	var (
		mu     sync.Mutex
		buffer []models.Option
	)
	collect := func(opt models.Option) {
		mu.Lock()
		defer mu.Unlock()
		buffer = append(buffer, opt)
		if len(buffer) > e.params.BufferCap {
			e.sortByScore(buffer)
			buffer = buffer[:e.params.BufferTrim]
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, via := range codes {
		if time.Now().After(deadline) {
			break
		}
		via := via
		g.Go(func() error {
			if err := e.exploreVia(gctx, q, via, deadline, collect); err != nil {
				log.Printf("via %s dropped: %v", via, err)
			}
			// branch failures never abort the overall search
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return buffer
}

// resolveVias maps candidate names to station codes, dropping names the
// resolver cannot place and codes equal to either endpoint.
func (e *Engine) resolveVias(ctx context.Context, names []string, q Query, deadline time.Time) []string {
	codes := make([]string, 0, len(names))
	seen := map[string]bool{
		strings.ToLower(q.From): true,
		strings.ToLower(q.To):   true,
	}
	for _, name := range names {
		if time.Now().After(deadline) {
			break
		}
		records, err := e.stations.Resolve(ctx, name)
		if err != nil || len(records) == 0 {
			continue
		}
		code := strings.ToLower(records[0].Code)
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, records[0].Code)
	}
	return codes
}

// exploreVia fetches the from→via half, keeps the shortest TopA, and for
// each of those fetches via→to departing at its arrival, keeping the
// shortest TopB. Valid pairs are joined into combination options.
// The budget is checked before each new upstream call, never mid-flight.
func (e *Engine) exploreVia(ctx context.Context, q Query, via string, deadline time.Time, collect func(models.Option)) error {
	if time.Now().After(deadline) {
		return nil
	}

	aOpts, err := e.trips.SearchTrips(ctx, nsapi.TripRequest{
		From:     q.From,
		To:       via,
		DateTime: q.DateTime,
	})
	if err != nil {
		return err
	}
	sortByDuration(aOpts)
	if len(aOpts) > e.params.TopA {
		aOpts = aOpts[:e.params.TopA]
	}

	maxTransfer := int(e.params.MaxTransfer.Minutes())
	for _, a := range aOpts {
		if time.Now().After(deadline) {
			return nil
		}

		bOpts, err := e.trips.SearchTrips(ctx, nsapi.TripRequest{
			From:     via,
			To:       q.To,
			DateTime: a.ArrivalTime,
		})
		if err != nil {
			return err
		}
		sortByDuration(bOpts)
		if len(bOpts) > e.params.TopB {
			bOpts = bOpts[:e.params.TopB]
		}

		for _, b := range bOpts {
			// The upstream is asked for departures at or after the A
			// arrival, but its ordering is not trusted: the gap filter
			// rejects anything departing earlier.
			gap := models.MinutesBetween(a.ArrivalTime, b.DepartureTime)
			if gap < 0 || gap > maxTransfer {
				continue
			}
			legs := make([]models.Leg, 0, len(a.Legs)+len(b.Legs))
			legs = append(legs, a.Legs...)
			legs = append(legs, b.Legs...)
			if opt := models.FromLegs(models.KindCombination, legs); opt != nil {
				collect(*opt)
			}
		}
	}
	return nil
}

// viaCandidates counts how often each intermediate stop appears as a leg
// boundary across the base trips and returns the top max by frequency.
// Ordering is stable: count descending, then name ascending.
func viaCandidates(base []models.Option, max int) []string {
	counts := make(map[string]int)
	for _, opt := range base {
		for i := 0; i < len(opt.Legs)-1; i++ {
			name := opt.Legs[i].DestName
			if name == "" {
				continue
			}
			counts[name]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	if len(names) > max {
		names = names[:max]
	}
	return names
}

// dedupe removes options sharing a signature; the first occurrence wins,
// so base results take precedence over later combinations.
func dedupe(options []models.Option) []models.Option {
	seen := make(map[string]bool, len(options))
	out := options[:0]
	for _, opt := range options {
		sig := opt.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, opt)
	}
	return out
}

// rank sorts by score ascending (departure time breaks ties) and
// truncates to Target.
func (e *Engine) rank(options []models.Option) []models.Option {
	e.sortByScore(options)
	if len(options) > e.params.Target {
		options = options[:e.params.Target]
	}
	return options
}

func (e *Engine) sortByScore(options []models.Option) {
	threshold := e.params.TransferThresholdMin
	factor := e.params.TransferPenaltyFactor
	sort.SliceStable(options, func(i, j int) bool {
		si, sj := options[i].Score(threshold, factor), options[j].Score(threshold, factor)
		if si != sj {
			return si < sj
		}
		return options[i].DepartureTime.Before(options[j].DepartureTime)
	})
}

func sortByDuration(options []models.Option) {
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].DurationMinutes < options[j].DurationMinutes
	})
}
