package ov

import (
	"testing"
	"time"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

var arrival = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// departuresAt builds records departing the given minute offsets after the
// train arrival
func departuresAt(offsets ...int) []models.DepartureRecord {
	out := make([]models.DepartureRecord, len(offsets))
	for i, m := range offsets {
		ts := arrival.Add(time.Duration(m) * time.Minute)
		out[i] = models.DepartureRecord{
			Line:         "1",
			Destination:  "Scheveningen",
			PlannedTime:  ts,
			ExpectedTime: ts,
		}
	}
	return out
}

func TestSelect_Window30(t *testing.T) {
	sel := Select(departuresAt(5, 40), arrival)
	if sel.Window != Window30 {
		t.Errorf("Expected window 30, got %s", sel.Window)
	}
	if len(sel.Rows) != 1 || sel.Rows[0].TransferMinutes != 5 {
		t.Errorf("Expected only the +5 departure, got %+v", sel.Rows)
	}
}

func TestSelect_Window60(t *testing.T) {
	sel := Select(departuresAt(45, 90), arrival)
	if sel.Window != Window60 {
		t.Errorf("Expected window 60, got %s", sel.Window)
	}
	if len(sel.Rows) != 1 || sel.Rows[0].TransferMinutes != 45 {
		t.Errorf("Expected only the +45 departure, got %+v", sel.Rows)
	}
}

func TestSelect_Unbounded(t *testing.T) {
	sel := Select(departuresAt(90), arrival)
	if sel.Window != WindowUnbounded {
		t.Errorf("Expected unbounded window, got %s", sel.Window)
	}
	if len(sel.Rows) != 1 || sel.Rows[0].TransferMinutes != 90 {
		t.Errorf("Expected the +90 departure, got %+v", sel.Rows)
	}
}

func TestSelect_NoneAfterArrival(t *testing.T) {
	sel := Select(departuresAt(-30, -5), arrival)
	if sel.Window != WindowNone {
		t.Errorf("Expected none, got %s", sel.Window)
	}
	if len(sel.Rows) != 0 {
		t.Errorf("Expected no rows, got %+v", sel.Rows)
	}
}

func TestSelect_NoData(t *testing.T) {
	sel := Select(nil, arrival)
	if sel.Window != WindowNoData {
		t.Errorf("Expected no-data to be distinct from none, got %s", sel.Window)
	}
}

func TestSelect_NegativeTransferNeverShown(t *testing.T) {
	sel := Select(departuresAt(-10, 5, 25), arrival)
	for _, row := range sel.Rows {
		if row.TransferMinutes < 0 {
			t.Errorf("Negative transfer row leaked: %+v", row)
		}
	}
	if len(sel.Rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(sel.Rows))
	}
}

func TestSelect_SortedAndCapped(t *testing.T) {
	offsets := []int{28, 3, 17, 9, 22, 1, 12, 25, 6, 19}
	sel := Select(departuresAt(offsets...), arrival)
	if sel.Window != Window30 {
		t.Fatalf("Expected window 30, got %s", sel.Window)
	}
	if len(sel.Rows) != maxRows {
		t.Errorf("Expected the row cap %d, got %d", maxRows, len(sel.Rows))
	}
	for i := 1; i < len(sel.Rows); i++ {
		if sel.Rows[i].ExpectedTime.Before(sel.Rows[i-1].ExpectedTime) {
			t.Errorf("Rows not sorted by expected time at %d", i)
		}
	}
	if sel.Rows[0].TransferMinutes != 1 {
		t.Errorf("Expected earliest departure first, got +%d", sel.Rows[0].TransferMinutes)
	}
}

func TestSelect_DelayedDepartureUsesExpectedTime(t *testing.T) {
	// planned before arrival, expected after: the row is usable
	d := models.DepartureRecord{
		Line:         "24",
		PlannedTime:  arrival.Add(-2 * time.Minute),
		ExpectedTime: arrival.Add(6 * time.Minute),
	}
	sel := Select([]models.DepartureRecord{d}, arrival)
	if sel.Window != Window30 {
		t.Fatalf("Expected window 30, got %s", sel.Window)
	}
	if sel.Rows[0].TransferMinutes != 6 {
		t.Errorf("Expected transfer from expected time, got %d", sel.Rows[0].TransferMinutes)
	}
}
