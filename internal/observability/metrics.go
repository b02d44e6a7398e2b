package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Claim outcome labels for the token claim counter.
const (
	ClaimOutcomeAccepted = "accepted"
	ClaimOutcomeRejected = "rejected"
)

// TokensIssued counts guest tokens issued.
// Use RegisterMetrics to register this with a Prometheus registry.
var TokensIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "lobby_guest_tokens_issued_total",
		Help: "Total number of guest tokens issued",
	},
)

// TokenClaims counts token claim attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var TokenClaims = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lobby_token_claims_total",
		Help: "Total number of token claim attempts",
	},
	[]string{"outcome"},
)

// ActiveSessions gauges currently open WebSocket sessions.
// Use RegisterMetrics to register this with a Prometheus registry.
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "lobby_active_sessions",
		Help: "Number of currently open WebSocket sessions",
	},
)

// MessagesReceived counts inbound client messages by type.
// Use RegisterMetrics to register this with a Prometheus registry.
var MessagesReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lobby_messages_total",
		Help: "Total number of inbound client messages",
	},
	[]string{"type"},
)

// GamesStarted counts games started from lobby rooms.
// Use RegisterMetrics to register this with a Prometheus registry.
var GamesStarted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "lobby_games_started_total",
		Help: "Total number of games started",
	},
)

// Rooms gauges the number of open lobby rooms.
// Use RegisterMetrics to register this with a Prometheus registry.
var Rooms = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "lobby_rooms",
		Help: "Number of open lobby rooms",
	},
)

// RegisterMetrics registers lobby metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TokensIssued)
	reg.MustRegister(TokenClaims)
	reg.MustRegister(ActiveSessions)
	reg.MustRegister(MessagesReceived)
	reg.MustRegister(GamesStarted)
	reg.MustRegister(Rooms)
}

// RecordTokenIssued increments the issued token counter.
func RecordTokenIssued() {
	TokensIssued.Inc()
}

// RecordTokenClaim increments the claim counter with the given outcome.
// Parameters:
//   - outcome: claim result (use ClaimOutcome* constants)
func RecordTokenClaim(outcome string) {
	TokenClaims.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	ActiveSessions.Dec()
}

// RecordMessage increments the inbound message counter for the given message type.
func RecordMessage(msgType string) {
	MessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordGameStarted increments the games started counter.
func RecordGameStarted() {
	GamesStarted.Inc()
}

// SetRooms sets the open room gauge.
func SetRooms(n int) {
	Rooms.Set(float64(n))
}
