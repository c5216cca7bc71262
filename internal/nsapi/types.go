package nsapi

import "encoding/json"

// tripsResponse is the raw trip-search payload
type tripsResponse struct {
	Trips []RawTrip `json:"trips"`
}

// RawTrip is one upstream journey before normalization
type RawTrip struct {
	PlannedDurationInMinutes int      `json:"plannedDurationInMinutes"`
	Legs                     []RawLeg `json:"legs"`
}

// RawLeg is one upstream leg. Product arrives either as a plain string or
// as a nested category object, so it is kept raw until normalization.
type RawLeg struct {
	Origin      RawStop         `json:"origin"`
	Destination RawStop         `json:"destination"`
	Product     json.RawMessage `json:"product"`
	Name        string          `json:"name"`
}

// RawStop is an upstream leg endpoint
type RawStop struct {
	Name            string `json:"name"`
	PlannedDateTime string `json:"plannedDateTime"`
	ActualDateTime  string `json:"actualDateTime"`
	PlannedTrack    string `json:"plannedTrack"`
	ActualTrack     string `json:"actualTrack"`
}

// rawProduct is the object shape of a leg's product field
type rawProduct struct {
	DisplayName       string `json:"displayName"`
	LongCategoryName  string `json:"longCategoryName"`
	ShortCategoryName string `json:"shortCategoryName"`
}

// stationsResponse is the raw station-search payload
type stationsResponse struct {
	Payload []rawStation `json:"payload"`
}

// rawStation carries per-language names keyed by language code
type rawStation struct {
	Code  string            `json:"code"`
	Namen map[string]string `json:"namen"`
}
