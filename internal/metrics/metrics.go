// Package metrics holds the Prometheus collectors for match play.
// Labels are bounded: team is "0" or "1", kinds are fixed strings.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "match_tick_duration_seconds",
		Help:    "Time spent in one team physics step",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"team"})

	participants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "match_participants",
		Help: "Participants currently on each team",
	}, []string{"team"})

	projectilesInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "match_projectiles_in_flight",
		Help: "Projectiles currently tracked by each team",
	}, []string{"team", "role"}) // role: outgoing, incoming

	fires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_fires_total",
		Help: "Projectiles fired",
	}, []string{"team"})

	cooldownDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_cooldown_drops_total",
		Help: "Events dropped because the participant cooldown had not elapsed",
	}, []string{"team", "kind"}) // kind: fire, move

	unknownParticipant = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_unknown_participant_total",
		Help: "Events dropped because the identity is not on the roster",
	}, []string{"team"})

	transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_transfers_total",
		Help: "Projectiles handed to the opposing team",
	}, []string{"team"})

	collisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_collisions_total",
		Help: "Projectiles destroyed by mid-air collision",
	}, []string{"team"})

	baseHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_base_hits_total",
		Help: "Incoming projectiles that reached the team base",
	}, []string{"team"})

	score = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "match_score",
		Help: "Current team score",
	}, []string{"team"})

	relayBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_relay_blocked_total",
		Help: "Relay sends that found the peer mailbox full",
	}, []string{"team"})

	busLagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_bus_lagged_total",
		Help: "Broadcast messages skipped by slow subscribers",
	}, []string{"team"})

	joinFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_join_failures_total",
		Help: "Connections rejected during the join handshake",
	}, []string{"reason"}) // reason: handshake, duplicate

	outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_outcomes_total",
		Help: "Terminal outcomes reached",
	}, []string{"team", "outcome"})

	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_event_log_total",
		Help: "Audit events accepted",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_event_log_dropped",
		Help: "Audit events dropped by rate limiting or overflow",
	})
)

// teamLabel keeps the label set to two values
func teamLabel(team int) string {
	return strconv.Itoa(team)
}

func RecordTick(team int, d time.Duration) {
	tickDuration.WithLabelValues(teamLabel(team)).Observe(d.Seconds())
}

func SetParticipants(team, n int) {
	participants.WithLabelValues(teamLabel(team)).Set(float64(n))
}

func SetProjectiles(team, outgoing, incoming int) {
	projectilesInFlight.WithLabelValues(teamLabel(team), "outgoing").Set(float64(outgoing))
	projectilesInFlight.WithLabelValues(teamLabel(team), "incoming").Set(float64(incoming))
}

func RecordFire(team int) {
	fires.WithLabelValues(teamLabel(team)).Inc()
}

// RecordCooldownDrop counts a rate-limited event; kind is "fire" or "move"
func RecordCooldownDrop(team int, kind string) {
	cooldownDrops.WithLabelValues(teamLabel(team), kind).Inc()
}

func RecordUnknownParticipant(team int) {
	unknownParticipant.WithLabelValues(teamLabel(team)).Inc()
}

func RecordTransfer(team int) {
	transfers.WithLabelValues(teamLabel(team)).Inc()
}

func RecordCollisions(team, n int) {
	collisions.WithLabelValues(teamLabel(team)).Add(float64(n))
}

func RecordBaseHit(team int) {
	baseHits.WithLabelValues(teamLabel(team)).Inc()
}

func SetScore(team, n int) {
	score.WithLabelValues(teamLabel(team)).Set(float64(n))
}

func RecordRelayBlocked(team int) {
	relayBlocked.WithLabelValues(teamLabel(team)).Inc()
}

func RecordBusLag(team int, skipped uint64) {
	busLagged.WithLabelValues(teamLabel(team)).Add(float64(skipped))
}

// RecordJoinFailure counts a rejected handshake; reason is "handshake" or "duplicate"
func RecordJoinFailure(reason string) {
	joinFailures.WithLabelValues(reason).Inc()
}

func RecordOutcome(team int, outcome string) {
	outcomes.WithLabelValues(teamLabel(team), outcome).Inc()
}

// UpdateEventLogStats mirrors the audit log counters
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}
