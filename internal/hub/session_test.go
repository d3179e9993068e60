package hub_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
)

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		delta hub.CodeDelta
		want  string
	}{
		{
			name:  "insert into empty document",
			doc:   "",
			delta: hub.CodeDelta{RangeStart: 0, RangeEnd: 0, Text: "func main() {}"},
			want:  "func main() {}",
		},
		{
			name:  "replace middle range",
			doc:   "hello world",
			delta: hub.CodeDelta{RangeStart: 6, RangeEnd: 11, Text: "gopher"},
			want:  "hello gopher",
		},
		{
			name:  "delete range",
			doc:   "abcdef",
			delta: hub.CodeDelta{RangeStart: 2, RangeEnd: 4, Text: ""},
			want:  "abef",
		},
		{
			name:  "append at end",
			doc:   "ab",
			delta: hub.CodeDelta{RangeStart: 2, RangeEnd: 2, Text: "c"},
			want:  "abc",
		},
		{
			name:  "range clamped to document",
			doc:   "short",
			delta: hub.CodeDelta{RangeStart: 3, RangeEnd: 100, Text: "e"},
			want:  "shoe",
		},
		{
			name:  "negative start clamped",
			doc:   "x",
			delta: hub.CodeDelta{RangeStart: -5, RangeEnd: 0, Text: "y"},
			want:  "yx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hub.ApplyDelta(tt.doc, tt.delta))
		})
	}
}

func deltaEvent(t *testing.T, seq uint64, d hub.CodeDelta) hub.Event {
	t.Helper()
	payload, err := json.Marshal(d)
	require.NoError(t, err)
	return hub.Event{Type: hub.EventCodeDelta, Payload: payload, Seq: seq, Timestamp: time.Now()}
}

func chatEvent(t *testing.T, seq uint64, text string) hub.Event {
	t.Helper()
	payload, err := json.Marshal(hub.ChatEntry{Text: text})
	require.NoError(t, err)
	return hub.Event{Type: hub.EventChatMessage, Payload: payload, Seq: seq, Timestamp: time.Now()}
}

// Overlapping ranges resolve by sequence order: the later delta wins.
func TestSessionFoldLastWriterWins(t *testing.T) {
	var s hub.Session
	s.Apply(deltaEvent(t, 1, hub.CodeDelta{RangeStart: 0, RangeEnd: 0, Text: "aaaa"}))
	s.Apply(deltaEvent(t, 2, hub.CodeDelta{RangeStart: 0, RangeEnd: 2, Text: "bb"}))
	s.Apply(deltaEvent(t, 3, hub.CodeDelta{RangeStart: 1, RangeEnd: 3, Text: "cc"}))

	assert.Equal(t, "bcca", s.Document)
}

// Re-folding the same event sequence always yields the same state; this is
// what makes replay and reconnect correct.
func TestSessionFoldDeterministic(t *testing.T) {
	events := []hub.Event{
		deltaEvent(t, 1, hub.CodeDelta{RangeStart: 0, RangeEnd: 0, Text: "package main\n"}),
		chatEvent(t, 2, "starting"),
		deltaEvent(t, 3, hub.CodeDelta{RangeStart: 8, RangeEnd: 12, Text: "app"}),
		chatEvent(t, 4, "renamed it"),
		deltaEvent(t, 5, hub.CodeDelta{RangeStart: 0, RangeEnd: 7, Text: "module"}),
	}

	fold := func() hub.Session {
		var s hub.Session
		for _, ev := range events {
			s.Apply(ev)
		}
		return s
	}

	first := fold()
	second := fold()

	assert.Equal(t, first.Document, second.Document)
	assert.Equal(t, first.LastSeq, second.LastSeq)
	require.Len(t, first.Chat, 2)
	assert.Equal(t, uint64(5), first.LastSeq)
}

func TestSessionFoldDisjointRangesBothApply(t *testing.T) {
	var s hub.Session
	s.Apply(deltaEvent(t, 1, hub.CodeDelta{RangeStart: 0, RangeEnd: 0, Text: "0123456789"}))
	s.Apply(deltaEvent(t, 2, hub.CodeDelta{RangeStart: 0, RangeEnd: 2, Text: "ab"}))
	s.Apply(deltaEvent(t, 3, hub.CodeDelta{RangeStart: 8, RangeEnd: 10, Text: "cd"}))

	assert.Equal(t, "ab234567cd", s.Document)
}

func TestSessionLeaderboardReplaces(t *testing.T) {
	var s hub.Session
	s.Apply(hub.Event{Type: hub.EventLeaderboardUpdate, Payload: json.RawMessage(`{"v":1}`), Seq: 1})
	s.Apply(hub.Event{Type: hub.EventLeaderboardUpdate, Payload: json.RawMessage(`{"v":2}`), Seq: 2})

	assert.JSONEq(t, `{"v":2}`, string(s.Leaderboard))
	assert.Equal(t, uint64(2), s.LastSeq)
}
