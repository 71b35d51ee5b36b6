package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

func drain(ch <-chan domain.Event) []string {
	var names []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return names
			}
			names = append(names, ev.Name)
		default:
			return names
		}
	}
}

func TestPublishReachesRoomMembersInOrder(t *testing.T) {
	h := New(nil, 8)
	a := h.Connect("a")
	b := h.Connect("b")
	outsider := h.Connect("c")
	h.Attach("room-1", "a")
	h.Attach("room-1", "b")

	h.Publish("room-1", domain.Event{Name: "one"})
	h.Reply("a", domain.Event{Name: "private"})
	h.Publish("room-1", domain.Event{Name: "two"})

	assert.Equal(t, []string{"one", "private", "two"}, drain(a))
	assert.Equal(t, []string{"one", "two"}, drain(b))
	assert.Empty(t, drain(outsider))
	assert.Equal(t, 2, h.Members("room-1"))
}

func TestDetachStopsDelivery(t *testing.T) {
	h := New(nil, 8)
	a := h.Connect("a")
	h.Attach("room-1", "a")
	h.Detach("room-1", "a")

	h.Publish("room-1", domain.Event{Name: "ignored"})
	assert.Empty(t, drain(a))
	assert.Equal(t, 0, h.Members("room-1"))

	h.Reply("a", domain.Event{Name: "still connected"})
	assert.Equal(t, []string{"still connected"}, drain(a))
}

func TestFullOutboxDropsConnection(t *testing.T) {
	h := New(nil, 2)
	slow := h.Connect("slow")
	fast := h.Connect("fast")
	h.Attach("room-1", "slow")
	h.Attach("room-1", "fast")

	h.Publish("room-1", domain.Event{Name: "1"})
	h.Publish("room-1", domain.Event{Name: "2"})
	assert.Equal(t, []string{"1", "2"}, drain(fast))

	h.Publish("room-1", domain.Event{Name: "3"})
	assert.Equal(t, []string{"3"}, drain(fast))

	// the slow connection keeps what was buffered, then its outbox is closed
	assert.Equal(t, []string{"1", "2"}, drain(slow))
	_, ok := <-slow
	assert.False(t, ok)
	assert.Equal(t, 1, h.Members("room-1"))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := New(nil, 2)
	out := h.Connect("a")
	h.Attach("room-1", "a")

	h.Disconnect("a")
	h.Disconnect("a")

	_, ok := <-out
	require.False(t, ok)
	assert.NotPanics(t, func() {
		h.Publish("room-1", domain.Event{Name: "x"})
		h.Reply("a", domain.Event{Name: "x"})
		h.Attach("room-1", "a")
	})
	assert.Equal(t, 0, h.Members("room-1"))
}

func TestFullOutboxCoalescesLeaderboardSnapshots(t *testing.T) {
	h := New(nil, 4)
	slow := h.Connect("slow")
	h.Attach("room-1", "slow")

	h.Publish("room-1", domain.Event{Name: domain.EventQuestion, Payload: 0})
	for score := 1; score <= 10; score++ {
		h.Publish("room-1", domain.Event{Name: domain.EventLeaderboardUpdate, Payload: score})
	}
	h.Reply("slow", domain.Event{Name: domain.EventAnswerResult})

	var got []domain.Event
	for {
		select {
		case ev, ok := <-slow:
			require.True(t, ok, "connection must survive a burst of snapshots")
			got = append(got, ev)
			continue
		default:
		}
		break
	}

	require.NotEmpty(t, got)
	assert.Equal(t, domain.EventQuestion, got[0].Name)
	assert.Equal(t, domain.EventAnswerResult, got[len(got)-1].Name)
	last := got[len(got)-2]
	assert.Equal(t, domain.EventLeaderboardUpdate, last.Name)
	assert.Equal(t, 10, last.Payload)
	// snapshots that survive stay in publish order
	prev := 0
	for _, ev := range got[1 : len(got)-1] {
		score := ev.Payload.(int)
		assert.Greater(t, score, prev)
		prev = score
	}
	assert.Equal(t, 1, h.Members("room-1"))
}
