package hub

import (
	"encoding/json"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

// Room owns all state for one broadcast channel. A single goroutine runs the
// command loop; membership changes, sequence assignment, the session fold and
// fan-out are all serialized through it, so rooms need no locks and different
// rooms run fully in parallel.
type Room struct {
	ID        string
	Kind      RoomKind
	CreatedAt time.Time

	maxMembers  int
	replayDepth int

	cmds chan func()
	done chan struct{}

	// Owned by the command loop.
	members    map[string]*Client
	seq        uint64
	ring       []Event
	session    Session
	emptySince time.Time

	logger zerolog.Logger
}

func NewRoom(id string, maxMembers, replayDepth int, logger zerolog.Logger) *Room {
	r := &Room{
		ID:          id,
		Kind:        ParseRoomKind(id),
		CreatedAt:   time.Now(),
		maxMembers:  maxMembers,
		replayDepth: replayDepth,
		cmds:        make(chan func(), 64),
		done:        make(chan struct{}),
		members:     make(map[string]*Client),
		emptySince:  time.Now(),
		logger:      logger.With().Str("component", "room").Str("roomId", id).Logger(),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-r.done:
			return
		}
	}
}

// do runs fn inside the room's command loop and waits for it.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case r.cmds <- func() {
		fn()
		close(ran)
	}:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case <-ran:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Close stops the command loop. The hub calls this only for rooms it has
// already unlinked.
func (r *Room) Close() {
	close(r.done)
}

// Join adds the connection as a member and announces it. The returned
// sequence number is current as of the announcement, so a follow-up replay
// from it misses nothing.
func (r *Room) Join(c *Client) (memberCount int, lastSeq uint64, err error) {
	doErr := r.do(func() {
		if _, ok := r.members[c.ID]; ok {
			memberCount, lastSeq = len(r.members), r.seq
			return
		}
		if len(r.members) >= r.maxMembers {
			err = ErrRoomFull
			return
		}

		r.members[c.ID] = c
		c.Rooms.Add(r.ID)
		r.emptySince = time.Time{}

		r.publish(r.membershipEvent("member_joined", c.UserID))
		memberCount, lastSeq = len(r.members), r.seq
	})
	if doErr != nil {
		return 0, 0, doErr
	}
	return memberCount, lastSeq, err
}

// Leave is idempotent: removing an absent member is a no-op.
func (r *Room) Leave(c *Client) {
	r.do(func() {
		r.removeMember(c)
	})
}

// Publish validates the event against the room kind's allowed subset,
// assigns the next sequence number and fans out.
func (r *Room) Publish(ev Event) (uint64, error) {
	var seq uint64
	var err error
	doErr := r.do(func() {
		if !allowedEvents[r.Kind][ev.Type] {
			err = ErrEventNotAllowed
			return
		}
		seq = r.publish(ev)
	})
	if doErr != nil {
		return 0, doErr
	}
	return seq, err
}

// PublishSystem bypasses the kind allowlist; it carries server-originated
// events such as verdict delivery.
func (r *Room) PublishSystem(ev Event) (uint64, error) {
	var seq uint64
	doErr := r.do(func() {
		seq = r.publish(ev)
	})
	if doErr != nil {
		return 0, doErr
	}
	return seq, nil
}

// Replay returns the retained events with sequence numbers afterSeq+1 up to
// the current one, in order.
func (r *Room) Replay(afterSeq uint64) ([]Event, error) {
	var out []Event
	var err error
	doErr := r.do(func() {
		if afterSeq >= r.seq {
			return
		}
		oldest := r.seq - uint64(len(r.ring)) + 1
		if afterSeq+1 < oldest {
			err = ErrReplayGapTooLarge
			return
		}
		for _, ev := range r.ring {
			if ev.Seq > afterSeq {
				out = append(out, ev)
			}
		}
	})
	if doErr != nil {
		return nil, doErr
	}
	return out, err
}

// Snapshot returns the folded current state for clients that fell outside
// the replay window.
func (r *Room) Snapshot() (*Snapshot, error) {
	var snap *Snapshot
	doErr := r.do(func() {
		chat := make([]Event, len(r.session.Chat))
		copy(chat, r.session.Chat)
		snap = &Snapshot{
			RoomID:      r.ID,
			Document:    r.session.Document,
			Chat:        chat,
			Leaderboard: r.session.Leaderboard,
			LastSeq:     r.session.LastSeq,
		}
	})
	if doErr != nil {
		return nil, doErr
	}
	return snap, nil
}

// Members returns the distinct user ids currently present.
func (r *Room) Members() []string {
	users := mapset.NewThreadUnsafeSet[string]()
	r.do(func() {
		for _, c := range r.members {
			users.Add(c.UserID)
		}
	})
	return users.ToSlice()
}

func (r *Room) MemberCount() int {
	var n int
	r.do(func() { n = len(r.members) })
	return n
}

// IdleSince reports how long the room has been empty; zero means occupied.
func (r *Room) IdleSince(now time.Time) time.Duration {
	var d time.Duration
	if err := r.do(func() {
		if len(r.members) == 0 && !r.emptySince.IsZero() {
			d = now.Sub(r.emptySince)
		}
	}); err != nil {
		return 0
	}
	return d
}

// publish runs inside the command loop.
func (r *Room) publish(ev Event) uint64 {
	r.seq++
	ev.Seq = r.seq
	ev.RoomID = r.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.session.Apply(ev)

	r.ring = append(r.ring, ev)
	if len(r.ring) > r.replayDepth {
		r.ring = r.ring[1:]
	}

	msg, err := protocol.NewMessage(protocol.MsgRoomEvent, ev)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build room event message")
		return ev.Seq
	}
	data, err := msg.ToBytes()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to serialize room event")
		return ev.Seq
	}

	var evicted []*Client
	for _, c := range r.members {
		select {
		case c.Send <- data:
		default:
			evicted = append(evicted, c)
		}
	}

	// A slow consumer never blocks the others: overflow drops the member,
	// who must rejoin and replay.
	for _, c := range evicted {
		r.logger.Warn().
			Str("clientId", c.ID).
			Str("userId", c.UserID).
			Msg("Send queue overflow, dropping member from room")
		r.removeMember(c)
		c.NotifyRejoinRequired(r.ID, "send queue overflow")
	}

	return ev.Seq
}

// removeMember runs inside the command loop.
func (r *Room) removeMember(c *Client) {
	if _, ok := r.members[c.ID]; !ok {
		return
	}
	delete(r.members, c.ID)
	c.Rooms.Remove(r.ID)

	if len(r.members) == 0 {
		r.emptySince = time.Now()
	}

	r.publish(r.membershipEvent("member_left", c.UserID))
}

func (r *Room) membershipEvent(change, userID string) Event {
	payload, _ := json.Marshal(MembershipChange{Change: change, UserID: userID})
	return Event{
		Type:    EventNotification,
		Payload: payload,
	}
}
