package testutil

// SampleTripsResponse is a trip-search payload with one direct and one
// two-leg trip; the second leg's product is the object shape.
const SampleTripsResponse = `{
  "trips": [
    {
      "plannedDurationInMinutes": 25,
      "legs": [
        {
          "origin": {"name": "Den Haag Centraal", "plannedDateTime": "2026-03-01T10:00:00+0100", "plannedTrack": "4"},
          "destination": {"name": "Rotterdam Centraal", "plannedDateTime": "2026-03-01T10:25:00+0100", "plannedTrack": "11"},
          "product": "Intercity"
        }
      ]
    },
    {
      "plannedDurationInMinutes": 40,
      "legs": [
        {
          "origin": {"name": "Den Haag Centraal", "plannedDateTime": "2026-03-01T10:05:00+0100"},
          "destination": {"name": "Delft", "plannedDateTime": "2026-03-01T10:18:00+0100"},
          "product": "Sprinter"
        },
        {
          "origin": {"name": "Delft", "plannedDateTime": "2026-03-01T10:26:00+0100"},
          "destination": {"name": "Rotterdam Centraal", "plannedDateTime": "2026-03-01T10:45:00+0100"},
          "product": {"displayName": "Sprinter", "longCategoryName": "Sprinter"}
        }
      ]
    }
  ]
}`

// SampleStationsResponse is a station-search payload
const SampleStationsResponse = `{
  "payload": [
    {"code": "GVC", "namen": {"lang": "Den Haag Centraal", "kort": "Den Haag C"}},
    {"code": "GV", "namen": {"lang": "Den Haag HS"}}
  ]
}`

// SampleBoardResponse is a departure-board payload
const SampleBoardResponse = `{
  "departures": [
    {"lineNumber": "1", "destinationName": "Scheveningen", "plannedDepartureTime": "2026-03-01T10:30:00+0100", "expectedDepartureTime": "2026-03-01T10:32:00+0100", "transportType": "TRAM"},
    {"lineNumber": "24", "destinationName": "Kijkduin", "plannedDepartureTime": "2026-03-01T10:40:00+0100", "transportType": "BUS"}
  ]
}`
