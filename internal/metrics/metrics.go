// Package metrics exposes Prometheus counters for rooms, joins and answers.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"quiz-room-service/internal/domain"
)

const namespace = "quizroom"

type Metrics struct {
	roomsCreated   prometheus.Counter
	joins          *prometheus.CounterVec
	answers        *prometheus.CounterVec
	quizzesDone    prometheus.Counter
	activeSessions prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		roomsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created from uploaded documents.",
		}),
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Join attempts by outcome.",
		}, []string{"outcome"}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Graded answers by correctness.",
		}, []string{"correct"}),
		quizzesDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_completed_total",
			Help:      "Quizzes that reached the completed state.",
		}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live in-memory room sessions.",
		}),
	}
}

func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
}

func (m *Metrics) JoinAccepted() {
	if m == nil {
		return
	}
	m.joins.WithLabelValues("accepted").Inc()
}

// JoinRejected labels the rejection by its cause.
func (m *Metrics) JoinRejected(err error) {
	if m == nil {
		return
	}
	outcome := "error"
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		outcome = "room_not_found"
	case errors.Is(err, domain.ErrInvalidCredential):
		outcome = "invalid_credential"
	}
	m.joins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AnswerGraded(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.answers.WithLabelValues(label).Inc()
}

func (m *Metrics) QuizCompleted() {
	if m == nil {
		return
	}
	m.quizzesDone.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
