package nsapi

import (
	"encoding/json"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

// fallbackProductLabel is used when no product shape yields a label
const fallbackProductLabel = "trein"

// NormalizeTrip converts one raw upstream trip into an Option.
// Returns nil, not an error, when the trip has no legs or an endpoint
// timestamp fails to parse; malformed records are silently dropped.
func NormalizeTrip(trip RawTrip) *models.Option {
	if len(trip.Legs) == 0 {
		return nil
	}

	legs := make([]models.Leg, 0, len(trip.Legs))
	for _, raw := range trip.Legs {
		dep, err := models.ParseTime(effectiveTime(raw.Origin))
		if err != nil {
			return nil
		}
		arr, err := models.ParseTime(effectiveTime(raw.Destination))
		if err != nil {
			return nil
		}

		delay := 0
		if raw.Origin.ActualDateTime != "" && raw.Origin.PlannedDateTime != "" {
			if planned, perr := models.ParseTime(raw.Origin.PlannedDateTime); perr == nil {
				delay = models.MinutesBetween(planned, dep)
			}
		}

		legs = append(legs, models.Leg{
			OriginName:    raw.Origin.Name,
			DestName:      raw.Destination.Name,
			DepartureTime: dep,
			ArrivalTime:   arr,
			OriginTrack:   effectiveTrack(raw.Origin),
			DestTrack:     effectiveTrack(raw.Destination),
			DelayMinutes:  delay,
			ProductLabel:  productLabel(raw),
		})
	}

	return models.FromLegs(models.KindDirect, legs)
}

func effectiveTime(s RawStop) string {
	if s.ActualDateTime != "" {
		return s.ActualDateTime
	}
	return s.PlannedDateTime
}

func effectiveTrack(s RawStop) string {
	if s.ActualTrack != "" {
		return s.ActualTrack
	}
	return s.PlannedTrack
}

// productLabel resolves the leg's product through each upstream shape in
// fixed priority order: plain string, object displayName, object long then
// short category name, leg name, literal fallback.
func productLabel(leg RawLeg) string {
	if len(leg.Product) > 0 {
		var s string
		if err := json.Unmarshal(leg.Product, &s); err == nil && s != "" {
			return s
		}
		var p rawProduct
		if err := json.Unmarshal(leg.Product, &p); err == nil {
			if p.DisplayName != "" {
				return p.DisplayName
			}
			if p.LongCategoryName != "" {
				return p.LongCategoryName
			}
			if p.ShortCategoryName != "" {
				return p.ShortCategoryName
			}
		}
	}
	if leg.Name != "" {
		return leg.Name
	}
	return fallbackProductLabel
}
