package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyFmt = "presence:user:%s"
	presenceTTL    = 5 * time.Minute
)

// Mirror keeps per-user online state in Redis so other platform services
// (and other instances of this one) can answer "is this user online" by
// reading the hash, without talking to the hub. The hub's own membership
// maps stay authoritative for room delivery; this service only writes the
// mirror, keyed by connection id.
type Mirror struct {
	rdb *redis.Client
}

func NewMirror(rdb *redis.Client) *Mirror {
	return &Mirror{rdb: rdb}
}

func (m *Mirror) SetOnline(ctx context.Context, userID, connectionID string) error {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	if err := m.rdb.HSet(ctx, key, connectionID, time.Now().Unix()).Err(); err != nil {
		return err
	}
	return m.rdb.Expire(ctx, key, presenceTTL).Err()
}

func (m *Mirror) SetOffline(ctx context.Context, userID, connectionID string) error {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	return m.rdb.HDel(ctx, key, connectionID).Err()
}

// Refresh re-arms the TTL for a live connection so crashed instances age
// out of the mirror.
func (m *Mirror) Refresh(ctx context.Context, userID, connectionID string) error {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	if err := m.rdb.HSet(ctx, key, connectionID, time.Now().Unix()).Err(); err != nil {
		return err
	}
	return m.rdb.Expire(ctx, key, presenceTTL).Err()
}
