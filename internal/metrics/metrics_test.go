package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"quiz-room-service/internal/domain"
)

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RoomCreated()
	m.JoinAccepted()
	m.JoinRejected(domain.ErrInvalidCredential)
	m.JoinRejected(domain.ErrRoomNotFound)
	m.AnswerGraded(true)
	m.AnswerGraded(false)
	m.AnswerGraded(true)
	m.QuizCompleted()
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins.WithLabelValues("invalid_credential")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins.WithLabelValues("room_not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.answers.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quizzesDone))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RoomCreated()
		m.JoinAccepted()
		m.JoinRejected(nil)
		m.AnswerGraded(true)
		m.QuizCompleted()
		m.SetActiveSessions(1)
	})
}
