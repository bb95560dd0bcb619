package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupWindow is how long an identical send is suppressed.
const DefaultDedupWindow = 10 * time.Second

// Deduper claims a key for a window. Claim returns false when the key is already held.
// Release drops a claim so a send that never went out can be retried at once.
type Deduper interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// DedupKey identifies a send by patient, phone, content and type.
func DedupKey(patientID, phone, content, msgType string) string {
	h := sha256.New()
	for _, part := range []string{patientID, phone, content, msgType} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RedisDeduper claims keys with SET NX so the window holds across API instances.
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	if client == nil {
		panic("messaging: redis client cannot be nil")
	}
	return &RedisDeduper{client: client, prefix: "dentalcrm:msgdedup:"}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: dedup claim: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("messaging: dedup release: %w", err)
	}
	return nil
}

// MemoryDeduper is the single-instance fallback when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(window)
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}
