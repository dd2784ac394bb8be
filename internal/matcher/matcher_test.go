package matcher_test

import (
	"testing"
	"time"

	"tripsignal/matcher-service/internal/matcher"
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

// marchMexicoSignal is the reference criteria: YQR departures, Mexico,
// March–April 2026, 7–10 nights, 2 adults, 1500 CAD per person, non-strict.
func marchMexicoSignal() model.Signal {
	return model.Signal{
		ID:   "sig-1",
		Name: "March Mexico",
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
		Budget:     model.BudgetSpec{Currency: "CAD", TargetPP: 1500, Strict: false},
	}
}

// cancunDeal is YQR→CUN, 7 nights in March, $499 CAD total.
func cancunDeal() model.Deal {
	return model.Deal{
		ID:          "deal-1",
		Provider:    "selloff",
		Origin:      "YQR",
		Destination: "CUN",
		DepartDate:  date("2026-03-10"),
		ReturnDate:  date("2026-03-17"),
		PriceCents:  49900,
		Currency:    "CAD",
	}
}

func evaluateOne(t *testing.T, d model.Deal, s model.Signal) matcher.Evaluation {
	t.Helper()
	evals := matcher.Evaluate(d, []model.Signal{s})
	if len(evals) != 1 {
		t.Fatalf("Evaluate returned %d evaluations, want 1", len(evals))
	}
	return evals[0]
}

// ── Reference match ────────────────────────────────────────────────────────

func TestEvaluate_ReferenceMatch(t *testing.T) {
	// 7 nights, March, per-person 249.50 CAD ≤ 1500.
	ev := evaluateOne(t, cancunDeal(), marchMexicoSignal())
	if !ev.Matched {
		t.Fatalf("expected match, got reason %s", ev.Reason)
	}
	if ev.Reason != matcher.ReasonMatched {
		t.Errorf("reason = %s, want MATCHED", ev.Reason)
	}
}

// ── Night bounds ───────────────────────────────────────────────────────────

func TestEvaluate_NightBounds(t *testing.T) {
	cases := []struct {
		ret  string
		want bool
	}{
		{"2026-03-16", false}, // 6 nights, under min
		{"2026-03-17", true},  // 7 nights, at min
		{"2026-03-20", true},  // 10 nights, at max
		{"2026-03-21", false}, // 11 nights against max_nights 10
	}
	for _, c := range cases {
		d := cancunDeal()
		d.ReturnDate = date(c.ret)
		ev := evaluateOne(t, d, marchMexicoSignal())
		if ev.Matched != c.want {
			t.Errorf("return %s: matched = %v, want %v (reason %s)", c.ret, ev.Matched, c.want, ev.Reason)
		}
		if !c.want && ev.Reason != matcher.ReasonNights {
			t.Errorf("return %s: reason = %s, want NIGHTS_OUTSIDE_BOUNDS", c.ret, ev.Reason)
		}
	}
}

// ── Travel window ──────────────────────────────────────────────────────────

func TestEvaluate_TravelWindow(t *testing.T) {
	cases := []struct {
		depart string
		want   bool
	}{
		{"2026-03-01", true},
		{"2026-04-24", true},  // departs in the last window month
		{"2026-02-25", false}, // before the window
		{"2026-05-01", false}, // after the window
	}
	for _, c := range cases {
		d := cancunDeal()
		d.DepartDate = date(c.depart)
		d.ReturnDate = d.DepartDate.AddDate(0, 0, 7)
		ev := evaluateOne(t, d, marchMexicoSignal())
		if ev.Matched != c.want {
			t.Errorf("depart %s: matched = %v, want %v (reason %s)", c.depart, ev.Matched, c.want, ev.Reason)
		}
		if !c.want && ev.Reason != matcher.ReasonWindow {
			t.Errorf("depart %s: reason = %s, want DEPARTURE_OUTSIDE_WINDOW", c.depart, ev.Reason)
		}
	}
}

// ── Departure set ──────────────────────────────────────────────────────────

func TestEvaluate_OriginNotInDepartureSet(t *testing.T) {
	d := cancunDeal()
	d.Origin = "YYZ"
	ev := evaluateOne(t, d, marchMexicoSignal())
	if ev.Matched || ev.Reason != matcher.ReasonOrigin {
		t.Errorf("got (%v, %s), want miss with ORIGIN_NOT_IN_DEPARTURE_SET", ev.Matched, ev.Reason)
	}
}

func TestEvaluate_MultiAirportDeparture(t *testing.T) {
	s := marchMexicoSignal()
	s.Departure = model.DepartureSpec{
		Mode:     model.DepartMultiple,
		Airports: []string{"YQR", "YXE", "YWG"},
	}
	for _, origin := range []string{"YQR", "YXE", "YWG"} {
		d := cancunDeal()
		d.Origin = origin
		if ev := evaluateOne(t, d, s); !ev.Matched {
			t.Errorf("origin %s should match the multi-airport set, got %s", origin, ev.Reason)
		}
	}
	d := cancunDeal()
	d.Origin = "YYC"
	if ev := evaluateOne(t, d, s); ev.Matched {
		t.Error("origin YYC should not match the multi-airport set")
	}
}

// ── Budget ─────────────────────────────────────────────────────────────────

func TestEvaluate_StrictBudget(t *testing.T) {
	s := marchMexicoSignal()
	s.Budget.Strict = true

	// Per-person 249.50 CAD ≤ 1500: matches.
	if ev := evaluateOne(t, cancunDeal(), s); !ev.Matched {
		t.Errorf("under-budget strict deal should match, got %s", ev.Reason)
	}

	// Per-person 1750 CAD > 1500: strict miss.
	d := cancunDeal()
	d.PriceCents = 350000
	ev := evaluateOne(t, d, s)
	if ev.Matched || ev.Reason != matcher.ReasonOverBudget {
		t.Errorf("got (%v, %s), want miss with OVER_STRICT_BUDGET", ev.Matched, ev.Reason)
	}

	// Exactly at target is within budget.
	d.PriceCents = 1500 * 100 * 2
	if ev := evaluateOne(t, d, s); !ev.Matched {
		t.Errorf("at-target strict deal should match, got %s", ev.Reason)
	}

	// One cent over the party total is a miss: per-person division would
	// truncate 300001/2 back to the target and let this through.
	d.PriceCents = 1500*100*2 + 1
	if ev := evaluateOne(t, d, s); ev.Matched || ev.Reason != matcher.ReasonOverBudget {
		t.Errorf("got (%v, %s), want miss with OVER_STRICT_BUDGET one cent over total", ev.Matched, ev.Reason)
	}
}

func TestEvaluate_NonStrictBudgetMatchesOverTarget(t *testing.T) {
	// Non-strict budgets never gate the match; ranking downstream may
	// deprioritise the deal instead.
	d := cancunDeal()
	d.PriceCents = 999900
	if ev := evaluateOne(t, d, marchMexicoSignal()); !ev.Matched {
		t.Errorf("non-strict over-budget deal should still match, got %s", ev.Reason)
	}
}

// ── Currency ───────────────────────────────────────────────────────────────

func TestEvaluate_CurrencyMismatchIsDiagnostic(t *testing.T) {
	s := marchMexicoSignal()
	s.Budget.Currency = "USD"

	ev := evaluateOne(t, cancunDeal(), s)
	if ev.Matched {
		t.Fatal("currency mismatch must be a non-match")
	}
	if ev.Reason != matcher.ReasonCurrencyMismatch {
		t.Fatalf("reason = %s, want CURRENCY_MISMATCH", ev.Reason)
	}

	diags := matcher.Diagnostics([]matcher.Evaluation{ev})
	if len(diags) != 1 || diags[0].SignalID != "sig-1" {
		t.Errorf("Diagnostics = %v, want the mismatch surfaced for sig-1", diags)
	}
}

// ── MatchedIDs ─────────────────────────────────────────────────────────────

func TestMatchedIDs(t *testing.T) {
	matching := marchMexicoSignal()
	wrongOrigin := marchMexicoSignal()
	wrongOrigin.ID = "sig-2"
	wrongOrigin.Departure.Airports = []string{"YYZ"}
	alsoMatching := marchMexicoSignal()
	alsoMatching.ID = "sig-3"

	evals := matcher.Evaluate(cancunDeal(), []model.Signal{matching, wrongOrigin, alsoMatching})
	got := matcher.MatchedIDs(evals)
	want := []string{"sig-1", "sig-3"}
	if len(got) != len(want) {
		t.Fatalf("MatchedIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MatchedIDs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
