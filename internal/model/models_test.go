package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"tripsignal/matcher-service/internal/model"
	"tripsignal/matcher-service/internal/region"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func validSignal() model.Signal {
	return model.Signal{
		Name:   "March sun week",
		Status: model.SignalActive,
		Departure: model.DepartureSpec{
			Mode:     model.DepartSingle,
			Airports: []string{"YQR"},
		},
		Destination: model.DestinationSpec{
			Mode:    model.DestRegions,
			Regions: []region.Key{region.Mexico},
		},
		Window: model.TravelWindow{
			StartMonth: model.MustYearMonth("2026-03"),
			EndMonth:   model.MustYearMonth("2026-04"),
			MinNights:  7,
			MaxNights:  10,
		},
		Travellers: model.Travellers{Adults: 2, Rooms: 1},
		Budget:     model.BudgetSpec{Currency: "CAD", TargetPP: 1500},
	}
}

// ── YearMonth ──────────────────────────────────────────────────────────────

func TestParseYearMonth(t *testing.T) {
	ym, err := model.ParseYearMonth("2026-03")
	if err != nil {
		t.Fatalf("ParseYearMonth(2026-03) unexpected error: %v", err)
	}
	if ym.Year != 2026 || ym.Month != time.March {
		t.Errorf("ParseYearMonth(2026-03) = %v, want 2026 March", ym)
	}
}

func TestParseYearMonth_Invalid(t *testing.T) {
	for _, s := range []string{"", "2026", "2026-13", "03-2026", "2026-3", "2026-03-10"} {
		if _, err := model.ParseYearMonth(s); err == nil {
			t.Errorf("ParseYearMonth(%q) expected error, got nil", s)
		}
	}
}

func TestYearMonth_Ordering(t *testing.T) {
	mar := model.MustYearMonth("2026-03")
	apr := model.MustYearMonth("2026-04")
	jan27 := model.MustYearMonth("2027-01")

	if !mar.Before(apr) || apr.Before(mar) {
		t.Error("2026-03 should be before 2026-04")
	}
	if !apr.Before(jan27) {
		t.Error("2026-04 should be before 2027-01")
	}
	if mar.Before(mar) || mar.After(mar) {
		t.Error("a month is neither before nor after itself")
	}
}

func TestYearMonth_JSONRoundTrip(t *testing.T) {
	in := model.MustYearMonth("2026-03")
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"2026-03"` {
		t.Errorf("marshal = %s, want \"2026-03\"", raw)
	}
	var out model.YearMonth
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

// ── TravelWindow ───────────────────────────────────────────────────────────

func TestTravelWindow_ContainsDeparture(t *testing.T) {
	w := model.TravelWindow{
		StartMonth: model.MustYearMonth("2026-03"),
		EndMonth:   model.MustYearMonth("2026-04"),
	}
	cases := []struct {
		depart string
		want   bool
	}{
		{"2026-03-01", true},
		{"2026-03-10", true},
		{"2026-04-30", true}, // last day of the end month is inclusive
		{"2026-02-28", false},
		{"2026-05-01", false},
		{"2027-03-10", false}, // same month, wrong year
	}
	for _, c := range cases {
		if got := w.ContainsDeparture(date(c.depart)); got != c.want {
			t.Errorf("ContainsDeparture(%s) = %v, want %v", c.depart, got, c.want)
		}
	}
}

// ── Signal.Validate ────────────────────────────────────────────────────────

func TestSignalValidate_Valid(t *testing.T) {
	if err := validSignal().Validate(); err != nil {
		t.Errorf("valid signal rejected: %v", err)
	}
}

func TestSignalValidate_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Signal)
	}{
		{"empty name", func(s *model.Signal) { s.Name = "  " }},
		{"no departure airports", func(s *model.Signal) { s.Departure.Airports = nil }},
		{"single mode with two airports", func(s *model.Signal) {
			s.Departure.Airports = []string{"YQR", "YYZ"}
		}},
		{"unknown departure mode", func(s *model.Signal) { s.Departure.Mode = "fancy" }},
		{"bad IATA code", func(s *model.Signal) { s.Departure.Airports = []string{"YQRX"} }},
		{"numeric IATA code", func(s *model.Signal) { s.Departure.Airports = []string{"Y2R"} }},
		{"region mode without regions", func(s *model.Signal) { s.Destination.Regions = nil }},
		{"unknown region", func(s *model.Signal) { s.Destination.Regions = []region.Key{"atlantis"} }},
		{"unknown destination mode", func(s *model.Signal) { s.Destination.Mode = "anywhere" }},
		{"window reversed", func(s *model.Signal) {
			s.Window.StartMonth = model.MustYearMonth("2026-05")
		}},
		{"zero min nights", func(s *model.Signal) { s.Window.MinNights = 0 }},
		{"nights reversed", func(s *model.Signal) { s.Window.MaxNights = 3 }},
		{"no adults", func(s *model.Signal) { s.Travellers.Adults = 0 }},
		{"no rooms", func(s *model.Signal) { s.Travellers.Rooms = 0 }},
		{"child age out of range", func(s *model.Signal) { s.Travellers.ChildrenAges = []int{18} }},
		{"negative child age", func(s *model.Signal) { s.Travellers.ChildrenAges = []int{-1} }},
		{"bad currency", func(s *model.Signal) { s.Budget.Currency = "CADX" }},
		{"zero budget", func(s *model.Signal) { s.Budget.TargetPP = 0 }},
	}
	for _, c := range cases {
		s := validSignal()
		c.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", c.name)
		}
	}
}

func TestSignalValidate_AirportDestinationMode(t *testing.T) {
	s := validSignal()
	s.Destination = model.DestinationSpec{Mode: model.DestAirport, Airports: []string{"CUN"}}
	if err := s.Validate(); err != nil {
		t.Errorf("airport destination mode rejected: %v", err)
	}

	s.Destination.Airports = []string{"CUN", "PUJ"}
	if err := s.Validate(); err == nil {
		t.Error("airport mode with two airports should be rejected")
	}

	s.Destination = model.DestinationSpec{Mode: model.DestAirportList, Airports: []string{"CUN", "PUJ"}}
	if err := s.Validate(); err != nil {
		t.Errorf("airport-list destination mode rejected: %v", err)
	}
}

func TestSignalNormalize(t *testing.T) {
	s := validSignal()
	s.Departure.Airports = []string{" yqr"}
	s.Budget.Currency = "cad "
	s.Normalize()
	if s.Departure.Airports[0] != "YQR" {
		t.Errorf("Normalize airports = %q, want YQR", s.Departure.Airports[0])
	}
	if s.Budget.Currency != "CAD" {
		t.Errorf("Normalize currency = %q, want CAD", s.Budget.Currency)
	}
}

// ── Deal ───────────────────────────────────────────────────────────────────

func validDeal() model.Deal {
	return model.Deal{
		Provider:    "selloff",
		Origin:      "YQR",
		Destination: "CUN",
		DepartDate:  date("2026-03-10"),
		ReturnDate:  date("2026-03-17"),
		PriceCents:  49900,
		Currency:    "CAD",
	}
}

func TestDealValidate_Valid(t *testing.T) {
	if err := validDeal().Validate(); err != nil {
		t.Errorf("valid deal rejected: %v", err)
	}
}

func TestDealValidate_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Deal)
	}{
		{"empty provider", func(d *model.Deal) { d.Provider = "" }},
		{"bad origin", func(d *model.Deal) { d.Origin = "YQ" }},
		{"bad destination", func(d *model.Deal) { d.Destination = "C4N" }},
		{"return before depart", func(d *model.Deal) { d.ReturnDate = date("2026-03-09") }},
		{"return equals depart", func(d *model.Deal) { d.ReturnDate = d.DepartDate }},
		{"negative price", func(d *model.Deal) { d.PriceCents = -1 }},
		{"bad currency", func(d *model.Deal) { d.Currency = "$" }},
	}
	for _, c := range cases {
		d := validDeal()
		c.mutate(&d)
		if err := d.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", c.name)
		}
	}
}

func TestDealNights(t *testing.T) {
	cases := []struct {
		depart, ret string
		want        int
	}{
		{"2026-03-10", "2026-03-17", 7},
		{"2026-03-10", "2026-03-21", 11},
		{"2026-03-10", "2026-03-11", 1},
	}
	for _, c := range cases {
		d := model.Deal{DepartDate: date(c.depart), ReturnDate: date(c.ret)}
		if got := d.Nights(); got != c.want {
			t.Errorf("Nights(%s → %s) = %d, want %d", c.depart, c.ret, got, c.want)
		}
	}
}
