package domain

import "time"

// RouteCategory classifies a bus number by its route type
type RouteCategory string

const (
	RouteTrunk   RouteCategory = "trunk"
	RouteBranch  RouteCategory = "branch"
	RouteVillage RouteCategory = "village"
	RouteAirport RouteCategory = "airport"
	RouteUnknown RouteCategory = "unknown"
)

// BusNumberCandidate is a normalized bus-number token derived from OCR
// text or a voice transcript. Immutable once produced.
type BusNumberCandidate struct {
	Number   string        `json:"number"`
	Category RouteCategory `json:"category"`
	Valid    bool          `json:"valid"`
	Reason   string        `json:"reason,omitempty"`
}

// BusInfo is one entry of the arrival feed's expected-bus list
type BusInfo struct {
	BusNumber string `json:"busNumber"`
}

// ArrivalSnapshot is the latest server-side view of buses expected near
// the rider. It is replaced wholesale on every successful fetch.
type ArrivalSnapshot struct {
	ExpectedBuses           []BusInfo `json:"expectedBuses"`
	HasNearbyStop           bool      `json:"hasNearbyStop"`
	IsRegisteredBusArriving bool      `json:"isRegisteredBusArriving"`
	FetchedAt               time.Time `json:"fetchedAt"`
}

// MatchDecision is the outcome of reconciling a detected bus number
// against the registered bus and the current arrival snapshot.
type MatchDecision struct {
	IsMatch        bool      `json:"isMatch"`
	DetectedNumber string    `json:"detectedNumber"`
	RegisteredBus  string    `json:"registeredBus,omitempty"`
	EvaluatedAt    time.Time `json:"evaluatedAt"`
}

// Position is a rider coordinate pair
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ConnectionState describes the location channel's lifecycle
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
