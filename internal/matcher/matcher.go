// Package matcher evaluates deals against signal criteria. Evaluation is a
// pure computation with no I/O, safe to run redundantly or speculatively.
package matcher

import (
	"strings"

	"tripsignal/matcher-service/internal/model"
	"tripsignal/matcher-service/internal/region"
)

// Reason explains why a signal did not match a deal. ReasonMatched marks a hit.
type Reason string

const (
	ReasonMatched          Reason = "MATCHED"
	ReasonOrigin           Reason = "ORIGIN_NOT_IN_DEPARTURE_SET"
	ReasonDestination      Reason = "DESTINATION_MISMATCH"
	ReasonWindow           Reason = "DEPARTURE_OUTSIDE_WINDOW"
	ReasonNights           Reason = "NIGHTS_OUTSIDE_BOUNDS"
	ReasonCurrencyMismatch Reason = "CURRENCY_MISMATCH"
	ReasonOverBudget       Reason = "OVER_STRICT_BUDGET"
)

// Evaluation is the outcome of testing one signal against one deal.
// CurrencyMismatch outcomes are diagnostics: they must be surfaced by the
// caller, never silently dropped.
type Evaluation struct {
	SignalID string
	Matched  bool
	Reason   Reason
}

// Evaluate tests the deal against every candidate signal and returns one
// Evaluation per candidate, in candidate order.
func Evaluate(deal model.Deal, candidates []model.Signal) []Evaluation {
	evals := make([]Evaluation, 0, len(candidates))
	for _, sig := range candidates {
		evals = append(evals, evaluateOne(deal, sig))
	}
	return evals
}

// MatchedIDs filters an evaluation set down to the matching signal ids.
func MatchedIDs(evals []Evaluation) []string {
	ids := make([]string, 0, len(evals))
	for _, e := range evals {
		if e.Matched {
			ids = append(ids, e.SignalID)
		}
	}
	return ids
}

// Diagnostics returns the evaluations that carry a non-fatal diagnostic the
// caller must report (currently only currency mismatches).
func Diagnostics(evals []Evaluation) []Evaluation {
	var out []Evaluation
	for _, e := range evals {
		if e.Reason == ReasonCurrencyMismatch {
			out = append(out, e)
		}
	}
	return out
}

func evaluateOne(deal model.Deal, sig model.Signal) Evaluation {
	ev := Evaluation{SignalID: sig.ID}

	if !airportInSet(deal.Origin, sig.Departure.Airports) {
		ev.Reason = ReasonOrigin
		return ev
	}

	if !destinationSatisfied(deal, sig.Destination) {
		ev.Reason = ReasonDestination
		return ev
	}

	if !sig.Window.ContainsDeparture(deal.DepartDate) {
		ev.Reason = ReasonWindow
		return ev
	}
	nights := deal.Nights()
	if nights < sig.Window.MinNights || nights > sig.Window.MaxNights {
		ev.Reason = ReasonNights
		return ev
	}

	// Currency mismatch is a hard non-match: no implicit conversion, and the
	// outcome is reported as a diagnostic rather than silently skipped.
	if !strings.EqualFold(deal.Currency, sig.Budget.Currency) {
		ev.Reason = ReasonCurrencyMismatch
		return ev
	}

	// Per-person budget, compared in total cents (target_pp x adults) so
	// integer division never truncates and a zero-adults row never divides
	// by zero. Children pricing is out of scope. Strictness gates whether an
	// over-budget deal counts as a miss; a non-strict signal matches
	// regardless of price and downstream ranking may deprioritise it.
	if sig.Budget.Strict && deal.PriceCents > sig.Budget.TargetPP*sig.Travellers.Adults*100 {
		ev.Reason = ReasonOverBudget
		return ev
	}

	ev.Matched = true
	ev.Reason = ReasonMatched
	return ev
}

func destinationSatisfied(deal model.Deal, spec model.DestinationSpec) bool {
	switch spec.Mode {
	case model.DestAirport, model.DestAirportList:
		return airportInSet(deal.Destination, spec.Airports)
	case model.DestRegions:
		dealRegion, known := region.ForAirport(deal.Destination)
		if !known {
			return false
		}
		for _, r := range spec.Regions {
			if r == dealRegion {
				return true
			}
		}
		return false
	}
	// Unknown modes are rejected at signal validation; treat as non-match
	// rather than guessing.
	return false
}

func airportInSet(code string, set []string) bool {
	for _, a := range set {
		if strings.EqualFold(code, a) {
			return true
		}
	}
	return false
}
