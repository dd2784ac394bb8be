package dedupe_test

import (
	"testing"
	"time"

	"tripsignal/matcher-service/internal/dedupe"
	"tripsignal/matcher-service/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// ── Determinism ────────────────────────────────────────────────────────────

func TestResolve_Deterministic(t *testing.T) {
	a := dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900)
	b := dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900)
	if a != b {
		t.Errorf("same inputs produced different keys: %q vs %q", a, b)
	}
}

func TestResolve_Format(t *testing.T) {
	got := dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900)
	want := "selloff:YQR:CUN:2026-03-10:2026-03-17:49900"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolve_NormalisesCase(t *testing.T) {
	a := dedupe.Resolve("SellOff", "yqr", "cun", date("2026-03-10"), date("2026-03-17"), 49900)
	b := dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900)
	if a != b {
		t.Errorf("case variants should resolve to the same key: %q vs %q", a, b)
	}
}

// ── Field sensitivity ──────────────────────────────────────────────────────

func TestResolve_EveryFieldChangesKey(t *testing.T) {
	base := dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900)

	variants := map[string]string{
		"provider":    dedupe.Resolve("sunwing", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900),
		"origin":      dedupe.Resolve("selloff", "YYZ", "CUN", date("2026-03-10"), date("2026-03-17"), 49900),
		"destination": dedupe.Resolve("selloff", "YQR", "PUJ", date("2026-03-10"), date("2026-03-17"), 49900),
		"depart":      dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-11"), date("2026-03-17"), 49900),
		"return":      dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-18"), 49900),
		"price":       dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49800),
	}
	for field, key := range variants {
		if key == base {
			t.Errorf("changing %s did not change the dedupe key", field)
		}
	}
}

// ── ForDeal ────────────────────────────────────────────────────────────────

func TestForDeal_MatchesResolve(t *testing.T) {
	d := model.Deal{
		Provider:    "selloff",
		Origin:      "YQR",
		Destination: "CUN",
		DepartDate:  date("2026-03-10"),
		ReturnDate:  date("2026-03-17"),
		PriceCents:  49900,
	}
	if got, want := dedupe.ForDeal(d), dedupe.Resolve("selloff", "YQR", "CUN", date("2026-03-10"), date("2026-03-17"), 49900); got != want {
		t.Errorf("ForDeal = %q, want %q", got, want)
	}
}
