// Package model defines the shared domain types for the matcher service:
// signals (standing travel searches), deals (priced offers from providers)
// and matches (durable signal↔deal links).
package model

import (
	"fmt"
	"strings"
	"time"

	"tripsignal/matcher-service/internal/region"
)

// SignalStatus mirrors the signals.status column.
type SignalStatus string

const (
	SignalActive   SignalStatus = "active"
	SignalPaused   SignalStatus = "paused"
	SignalArchived SignalStatus = "archived"
)

// DepartureMode selects how a signal's departure airports are interpreted.
type DepartureMode string

const (
	DepartSingle   DepartureMode = "single"   // exactly one airport
	DepartMultiple DepartureMode = "multiple" // any airport in the set
)

// DestinationMode selects how a signal's destination spec is interpreted.
// The matcher switches exhaustively over these values.
type DestinationMode string

const (
	DestAirport     DestinationMode = "airport"  // exact airport match
	DestAirportList DestinationMode = "airports" // any airport in the set
	DestRegions     DestinationMode = "regions"  // deal destination's region in the set
)

// DepartureSpec is a signal's departure constraint.
type DepartureSpec struct {
	Mode     DepartureMode `json:"mode"`
	Airports []string      `json:"airports"`
}

// DestinationSpec is a signal's destination constraint.
type DestinationSpec struct {
	Mode     DestinationMode `json:"mode"`
	Airports []string        `json:"airports,omitempty"`
	Regions  []region.Key    `json:"regions,omitempty"`
}

// TravelWindow bounds when and how long a trip may be. All bounds inclusive.
type TravelWindow struct {
	StartMonth YearMonth `json:"start_month"`
	EndMonth   YearMonth `json:"end_month"`
	MinNights  int       `json:"min_nights"`
	MaxNights  int       `json:"max_nights"`
}

// ContainsDeparture reports whether a departure date falls in a month within
// [StartMonth, EndMonth].
func (w TravelWindow) ContainsDeparture(departDate time.Time) bool {
	ym := YearMonth{Year: departDate.Year(), Month: departDate.Month()}
	return !ym.Before(w.StartMonth) && !ym.After(w.EndMonth)
}

// Travellers describes the party a signal is priced for.
type Travellers struct {
	Adults       int   `json:"adults"`
	ChildrenAges []int `json:"children_ages,omitempty"`
	Rooms        int   `json:"rooms"`
}

// BudgetSpec is a signal's per-person price target.
// TargetPP is in whole currency units (dollars), matching how users enter it;
// deal prices are in cents.
type BudgetSpec struct {
	Currency string `json:"currency"`
	TargetPP int    `json:"target_pp"`
	Strict   bool   `json:"strict"`
}

// Signal is a standing travel search. Immutable once created in this
// service's view; edits upstream produce a new signal.
type Signal struct {
	ID          string
	Name        string
	Status      SignalStatus
	Departure   DepartureSpec
	Destination DestinationSpec
	Window      TravelWindow
	Travellers  Travellers
	Budget      BudgetSpec
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SignalConfig is the JSONB shape stored in signals.config.
type SignalConfig struct {
	Departure   DepartureSpec   `json:"departure"`
	Destination DestinationSpec `json:"destination"`
	Window      TravelWindow    `json:"travel_window"`
	Travellers  Travellers      `json:"travellers"`
	Budget      BudgetSpec      `json:"budget"`
}

// Config returns the JSONB-persisted portion of the signal.
func (s Signal) Config() SignalConfig {
	return SignalConfig{
		Departure:   s.Departure,
		Destination: s.Destination,
		Window:      s.Window,
		Travellers:  s.Travellers,
		Budget:      s.Budget,
	}
}

// ApplyConfig copies a persisted config back onto the signal.
func (s *Signal) ApplyConfig(c SignalConfig) {
	s.Departure = c.Departure
	s.Destination = c.Destination
	s.Window = c.Window
	s.Travellers = c.Travellers
	s.Budget = c.Budget
}

// Validate checks the signal invariants before it is stored.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("signal name is required")
	}
	switch s.Departure.Mode {
	case DepartSingle:
		if len(s.Departure.Airports) != 1 {
			return fmt.Errorf("single departure mode requires exactly one airport, got %d", len(s.Departure.Airports))
		}
	case DepartMultiple:
		if len(s.Departure.Airports) == 0 {
			return fmt.Errorf("multiple departure mode requires at least one airport")
		}
	default:
		return fmt.Errorf("unknown departure mode %q", s.Departure.Mode)
	}
	for _, code := range s.Departure.Airports {
		if err := validateIATA(code); err != nil {
			return fmt.Errorf("departure: %w", err)
		}
	}

	switch s.Destination.Mode {
	case DestAirport:
		if len(s.Destination.Airports) != 1 {
			return fmt.Errorf("airport destination mode requires exactly one airport, got %d", len(s.Destination.Airports))
		}
	case DestAirportList:
		if len(s.Destination.Airports) == 0 {
			return fmt.Errorf("airport-list destination mode requires at least one airport")
		}
	case DestRegions:
		if len(s.Destination.Regions) == 0 {
			return fmt.Errorf("region destination mode requires at least one region")
		}
		for _, r := range s.Destination.Regions {
			if !region.IsValid(r) {
				return fmt.Errorf("unknown destination region %q (known: %v)", r, region.All())
			}
		}
	default:
		return fmt.Errorf("unknown destination mode %q", s.Destination.Mode)
	}
	for _, code := range s.Destination.Airports {
		if err := validateIATA(code); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	}

	if s.Window.EndMonth.Before(s.Window.StartMonth) {
		return fmt.Errorf("travel window start_month %s is after end_month %s", s.Window.StartMonth, s.Window.EndMonth)
	}
	if s.Window.MinNights < 1 {
		return fmt.Errorf("min_nights must be >= 1, got %d", s.Window.MinNights)
	}
	if s.Window.MaxNights < s.Window.MinNights {
		return fmt.Errorf("max_nights %d must be >= min_nights %d", s.Window.MaxNights, s.Window.MinNights)
	}

	if s.Travellers.Adults < 1 {
		return fmt.Errorf("travellers must include at least one adult")
	}
	if s.Travellers.Rooms < 1 {
		return fmt.Errorf("travellers must book at least one room")
	}
	for _, age := range s.Travellers.ChildrenAges {
		if age < 0 || age > 17 {
			return fmt.Errorf("child age must be between 0 and 17, got %d", age)
		}
	}

	if len(s.Budget.Currency) != 3 {
		return fmt.Errorf("budget currency must be a 3-letter code, got %q", s.Budget.Currency)
	}
	if s.Budget.TargetPP < 1 {
		return fmt.Errorf("budget target_pp must be >= 1, got %d", s.Budget.TargetPP)
	}

	return nil
}

// Normalize uppercases airport and currency codes in place. Called before
// validation so comparisons elsewhere can be exact.
func (s *Signal) Normalize() {
	for i, code := range s.Departure.Airports {
		s.Departure.Airports[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	for i, code := range s.Destination.Airports {
		s.Destination.Airports[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	s.Budget.Currency = strings.ToUpper(strings.TrimSpace(s.Budget.Currency))
}

// Deal is a single priced offer snapshot from a provider.
type Deal struct {
	ID          string
	Provider    string
	Origin      string
	Destination string
	DepartDate  time.Time
	ReturnDate  time.Time
	PriceCents  int
	Currency    string
	DeeplinkURL string
	Airline     string
	Cabin       string
	Stops       int
	IsActive    bool
	FoundAt     time.Time
	DedupeKey   string
}

// Nights returns the trip length in nights.
func (d Deal) Nights() int {
	return int(d.ReturnDate.Sub(d.DepartDate).Hours() / 24)
}

// Validate checks the deal invariants before ingestion.
func (d Deal) Validate() error {
	if strings.TrimSpace(d.Provider) == "" {
		return fmt.Errorf("deal provider is required")
	}
	if err := validateIATA(d.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := validateIATA(d.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if !d.DepartDate.Before(d.ReturnDate) {
		return fmt.Errorf("depart_date %s must be before return_date %s",
			d.DepartDate.Format("2006-01-02"), d.ReturnDate.Format("2006-01-02"))
	}
	if d.PriceCents < 0 {
		return fmt.Errorf("price_cents must be >= 0, got %d", d.PriceCents)
	}
	if len(d.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", d.Currency)
	}
	return nil
}

// Normalize uppercases airport and currency codes in place.
func (d *Deal) Normalize() {
	d.Origin = strings.ToUpper(strings.TrimSpace(d.Origin))
	d.Destination = strings.ToUpper(strings.TrimSpace(d.Destination))
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.Provider = strings.TrimSpace(d.Provider)
}

// Match durably links a deal to the signal it satisfied. Never mutated.
type Match struct {
	ID        string
	SignalID  string
	DealID    string
	MatchedAt time.Time
}

func validateIATA(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("IATA code must be exactly 3 alphabetic characters: %q", code)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return fmt.Errorf("IATA code must be exactly 3 alphabetic characters: %q", code)
		}
	}
	return nil
}
