// Package region maps sun-destination airports to the region keys used by
// signal destination specs.
package region

import "strings"

// Key identifies a destination region a signal can subscribe to.
type Key string

const (
	Mexico             Key = "mexico"
	DominicanRepublic  Key = "dominican_republic"
	Cuba               Key = "cuba"
	Jamaica            Key = "jamaica"
	Caribbean          Key = "caribbean"
	CentralAmerica     Key = "central_america"
)

// airportRegions maps IATA destination airports to their region key.
// Covers the package-vacation gateways sold by the providers we ingest.
var airportRegions = map[string]Key{
	// Mexico
	"CUN": Mexico, // Cancún / Riviera Maya
	"PVR": Mexico, // Puerto Vallarta
	"SJD": Mexico, // Los Cabos
	"MZT": Mexico, // Mazatlán
	"HUX": Mexico, // Huatulco
	"ZIH": Mexico, // Ixtapa-Zihuatanejo
	"PXM": Mexico, // Puerto Escondido
	"CZM": Mexico, // Cozumel

	// Dominican Republic
	"PUJ": DominicanRepublic, // Punta Cana
	"POP": DominicanRepublic, // Puerto Plata
	"LRM": DominicanRepublic, // La Romana
	"AZS": DominicanRepublic, // Samaná

	// Cuba
	"VRA": Cuba, // Varadero
	"HOG": Cuba, // Holguín
	"HAV": Cuba, // Havana
	"CCC": Cuba, // Cayo Coco
	"SNU": Cuba, // Santa Clara

	// Jamaica
	"MBJ": Jamaica, // Montego Bay
	"KIN": Jamaica, // Kingston

	// Wider Caribbean
	"AUA": Caribbean, // Aruba
	"BGI": Caribbean, // Barbados
	"CUR": Caribbean, // Curaçao
	"GCM": Caribbean, // Grand Cayman
	"UVF": Caribbean, // Saint Lucia
	"SXM": Caribbean, // St. Maarten
	"PLS": Caribbean, // Turks and Caicos
	"NAS": Caribbean, // Nassau

	// Central America
	"SJO": CentralAmerica, // San José
	"LIR": CentralAmerica, // Liberia
	"BZE": CentralAmerica, // Belize City
	"PTY": CentralAmerica, // Panama City
	"RTB": CentralAmerica, // Roatán
	"SAP": CentralAmerica, // San Pedro Sula
}

// ForAirport returns the region for an IATA destination airport code.
// The second return is false when the airport is not a known sun destination.
func ForAirport(code string) (Key, bool) {
	r, ok := airportRegions[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok
}

// IsValid reports whether k is a known region key.
func IsValid(k Key) bool {
	switch k {
	case Mexico, DominicanRepublic, Cuba, Jamaica, Caribbean, CentralAmerica:
		return true
	}
	return false
}

// All returns every known region key, for validation error messages.
func All() []Key {
	return []Key{Mexico, DominicanRepublic, Cuba, Jamaica, Caribbean, CentralAmerica}
}
