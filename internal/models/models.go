package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// OptionKind distinguishes journeys returned whole by the upstream from
// journeys synthesized out of two searches joined at a via station.
type OptionKind string

const (
	KindDirect      OptionKind = "direct"
	KindCombination OptionKind = "combination"
)

// StationRecord is a resolved station: upstream code plus display name.
// Immutable once fetched.
type StationRecord struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// Leg is one train ride within an Option. Times are effective (actual when
// the upstream reports one, planned otherwise).
type Leg struct {
	OriginName    string    `json:"originName"`
	DestName      string    `json:"destName"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	OriginTrack   string    `json:"originTrack,omitempty"`
	DestTrack     string    `json:"destTrack,omitempty"`
	DelayMinutes  int       `json:"delayMinutes"`
	ProductLabel  string    `json:"product"`
}

// Option is one journey offered to the caller.
// MinTransferMinutes is nil when the journey has fewer than two legs.
type Option struct {
	Kind               OptionKind `json:"kind"`
	DurationMinutes    int        `json:"durationMinutes"`
	DepartureTime      time.Time  `json:"departureTime"`
	ArrivalTime        time.Time  `json:"arrivalTime"`
	MinTransferMinutes *int       `json:"minTransferMinutes"`
	Legs               []Leg      `json:"legs"`
}

// DepartureRecord is one row of a connecting-transit departure board.
// TransferMinutes is filled in by the departure window selector relative to
// the train's arrival time.
type DepartureRecord struct {
	Line            string    `json:"line"`
	Destination     string    `json:"destination"`
	PlannedTime     time.Time `json:"plannedTime"`
	ExpectedTime    time.Time `json:"expectedTime"`
	TransportType   string    `json:"transportType"`
	DelayMinutes    int       `json:"delayMinutes"`
	TransferMinutes int       `json:"transferMinutes"`
}

// Favorite is a saved van/naar pair.
type Favorite struct {
	Van  string `json:"van"`
	Naar string `json:"naar"`
}

// upstream timestamps carry a fixed UTC-offset suffix without a colon
const upstreamTimeLayout = "2006-01-02T15:04:05-0700"

// ParseTime parses an upstream timestamp, accepting RFC3339 as a fallback.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(upstreamTimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// MinutesBetween returns round((b-a)/1m). Negative when b precedes a.
func MinutesBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Minutes()))
}

// FromLegs assembles an Option from an ordered leg sequence, computing
// duration and minimum transfer. Returns nil when there are no legs, when
// the overall duration would be negative, or for a combination whose
// halves overlap (negative transfer at the join).
func FromLegs(kind OptionKind, legs []Leg) *Option {
	if len(legs) == 0 {
		return nil
	}

	dep := legs[0].DepartureTime
	arr := legs[len(legs)-1].ArrivalTime
	duration := MinutesBetween(dep, arr)
	if duration < 0 {
		return nil
	}

	var minTransfer *int
	for i := 1; i < len(legs); i++ {
		gap := MinutesBetween(legs[i-1].ArrivalTime, legs[i].DepartureTime)
		if gap < 0 {
			// Physically impossible connections never feed the minimum;
			// a combination with an overlapping join is rejected outright.
			if kind == KindCombination {
				return nil
			}
			continue
		}
		if minTransfer == nil || gap < *minTransfer {
			g := gap
			minTransfer = &g
		}
	}

	return &Option{
		Kind:               kind,
		DurationMinutes:    duration,
		DepartureTime:      dep,
		ArrivalTime:        arr,
		MinTransferMinutes: minTransfer,
		Legs:               legs,
	}
}

// Signature canonically identifies a journey independent of how it was
// discovered. Two options with equal signatures are the same journey.
func (o *Option) Signature() string {
	var b strings.Builder
	b.WriteString(o.DepartureTime.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(o.ArrivalTime.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(o.DurationMinutes))
	for _, l := range o.Legs {
		b.WriteByte('|')
		b.WriteString(l.OriginName)
		b.WriteByte('>')
		b.WriteString(l.DestName)
		b.WriteByte('@')
		b.WriteString(l.DepartureTime.UTC().Format(time.RFC3339))
		b.WriteByte('@')
		b.WriteString(l.ArrivalTime.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Score ranks an option: lower is better. Total duration plus a penalty for
// buffers longer than thresholdMin minutes, at factor points per minute over.
func (o *Option) Score(thresholdMin, factor int) int {
	score := o.DurationMinutes
	if o.MinTransferMinutes != nil && *o.MinTransferMinutes > thresholdMin {
		score += factor * (*o.MinTransferMinutes - thresholdMin)
	}
	return score
}
