package hub

import "encoding/json"

// Session is the per-room replay state: the result of folding the room's
// event log in sequence order. The fold is a pure function of the log, so
// re-folding the same events always yields the same state. Local client
// caches are read-through views of this; the session is the system of record
// while the room lives.
type Session struct {
	Document    string
	Chat        []Event
	Leaderboard json.RawMessage
	LastSeq     uint64
}

// Snapshot is the full-state fallback for clients whose replay window has
// expired.
type Snapshot struct {
	RoomID      string          `json:"roomId"`
	Document    string          `json:"document"`
	Chat        []Event         `json:"chat"`
	Leaderboard json.RawMessage `json:"leaderboard,omitempty"`
	LastSeq     uint64          `json:"lastSeq"`
}

// Apply folds one event into the session. Events must arrive in sequence
// order; the owning room guarantees that.
func (s *Session) Apply(ev Event) {
	switch ev.Type {
	case EventCodeDelta:
		var delta CodeDelta
		if err := json.Unmarshal(ev.Payload, &delta); err == nil {
			s.Document = ApplyDelta(s.Document, delta)
		}
	case EventChatMessage:
		s.Chat = append(s.Chat, ev)
	case EventLeaderboardUpdate:
		s.Leaderboard = ev.Payload
	}
	s.LastSeq = ev.Seq
}

// ApplyDelta replaces [RangeStart, RangeEnd) of doc with the delta's text.
// Ranges are clamped to the document; deltas applied in sequence order give
// last-writer-wins on overlapping ranges.
func ApplyDelta(doc string, delta CodeDelta) string {
	start, end := delta.RangeStart, delta.RangeEnd
	if start < 0 {
		start = 0
	}
	if start > len(doc) {
		start = len(doc)
	}
	if end < start {
		end = start
	}
	if end > len(doc) {
		end = len(doc)
	}
	return doc[:start] + delta.Text + doc[end:]
}
