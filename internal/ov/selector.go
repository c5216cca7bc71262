package ov

import (
	"sort"
	"time"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

// Window identifies which departure window produced the selection
type Window string

const (
	Window30        Window = "30"
	Window60        Window = "60"
	WindowUnbounded Window = "unbounded"

	// WindowNone means departures were fetched but none depart after the
	// train's arrival; WindowNoData means there was nothing to select from.
	WindowNone   Window = "none"
	WindowNoData Window = "no-data"
)

// maxRows caps how many connecting departures are shown per train leg
const maxRows = 8

// Selection is the outcome of a departure-window pass
type Selection struct {
	Rows   []models.DepartureRecord `json:"rows"`
	Window Window                   `json:"window"`
}

// Select picks the connecting-transit rows to display after a train
// arrives. The window widens only as needed: 30 minutes, then 60, then
// unbounded; each window is tried at most once and a departure before the
// arrival is never shown.
func Select(departures []models.DepartureRecord, trainArrival time.Time) Selection {
	if len(departures) == 0 {
		return Selection{Rows: []models.DepartureRecord{}, Window: WindowNoData}
	}

	// Transfer times are computed once; negative transfers are filtered
	// here and can never reappear in a wider window.
	usable := make([]models.DepartureRecord, 0, len(departures))
	for _, d := range departures {
		d.TransferMinutes = models.MinutesBetween(trainArrival, d.ExpectedTime)
		if d.TransferMinutes < 0 {
			continue
		}
		usable = append(usable, d)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].ExpectedTime.Before(usable[j].ExpectedTime)
	})

	if rows := within(usable, 30); len(rows) > 0 {
		return Selection{Rows: rows, Window: Window30}
	}
	if rows := within(usable, 60); len(rows) > 0 {
		return Selection{Rows: rows, Window: Window60}
	}
	if len(usable) > 0 {
		return Selection{Rows: capRows(usable), Window: WindowUnbounded}
	}
	return Selection{Rows: []models.DepartureRecord{}, Window: WindowNone}
}

func within(usable []models.DepartureRecord, limitMin int) []models.DepartureRecord {
	rows := make([]models.DepartureRecord, 0, maxRows)
	for _, d := range usable {
		if d.TransferMinutes > limitMin {
			continue
		}
		rows = append(rows, d)
		if len(rows) == maxRows {
			break
		}
	}
	return rows
}

func capRows(usable []models.DepartureRecord) []models.DepartureRecord {
	if len(usable) > maxRows {
		return usable[:maxRows]
	}
	return usable
}
