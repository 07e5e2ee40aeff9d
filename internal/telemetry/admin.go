package telemetry

import (
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"
)

// AdminProbe is a tiny synchronous helper, distinct from Publisher's
// go-redis client, for reading back the last snapshot a Publisher wrote
// -- the redigo-idiomatic Do("GET", key) style -- to confirm a publish
// happened without subscribing to the channel. Nothing in this module
// calls it.
type AdminProbe struct {
	pool *redis.Pool
}

// NewAdminProbe builds a probe against addr using a small redigo pool.
func NewAdminProbe(addr string) *AdminProbe {
	return &AdminProbe{
		pool: &redis.Pool{
			MaxIdle:   2,
			MaxActive: 2,
			Dial:      func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
		},
	}
}

// LastSnapshot reads back the last payload Publisher.Publish wrote for
// channel and returns its publish timestamp; the bool is false when no
// payload has been written.
func (p *AdminProbe) LastSnapshot(channel string) (time.Time, bool, error) {
	conn := p.pool.Get()
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", channel+":last"))
	if err == redis.ErrNil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return time.Time{}, false, err
	}
	return payload.PublishedAt, true, nil
}

// Close releases the underlying connection pool.
func (p *AdminProbe) Close() error { return p.pool.Close() }
