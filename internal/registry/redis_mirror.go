package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

const mirrorQueueSize = 1024

var _ Mirror = (*RedisMirror)(nil)

type mirrorOp struct {
	account string
	value   string // empty means delete
}

// RedisMirror copies local claims into Redis as <prefix>:claim:<account> keys
// with a TTL kept alive by a heartbeat. It never feeds state back into the Registry.
type RedisMirror struct {
	client            *redis.Client
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]string // key -> value written by this instance
	mu                sync.RWMutex
	ops               chan mirrorOp
	opsMu             sync.RWMutex
	closed            bool
	done              chan struct{}
	cancel            context.CancelFunc
}

func NewRedisMirror(cfg config.MirrorConfig, instanceID string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := newRedisMirror(client, cfg, instanceID)
	go m.apply()
	return m, nil
}

func newRedisMirror(client *redis.Client, cfg config.MirrorConfig, instanceID string) *RedisMirror {
	return &RedisMirror{
		client:            client,
		instanceID:        instanceID,
		prefix:            cfg.Prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]string),
		ops:               make(chan mirrorOp, mirrorQueueSize),
		done:              make(chan struct{}),
	}
}

func (m *RedisMirror) keyFor(account string) string {
	return fmt.Sprintf("%s:claim:%s", m.prefix, account)
}

func (m *RedisMirror) Claimed(claim Claim) {
	m.enqueue(mirrorOp{account: claim.Account, value: claim.Owner + "@" + m.instanceID})
}

func (m *RedisMirror) Released(account, _ string) {
	m.enqueue(mirrorOp{account: account})
}

func (m *RedisMirror) enqueue(op mirrorOp) {
	m.opsMu.RLock()
	defer m.opsMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.ops <- op:
	default:
		l := log.L()
		l.Warn().Str(log.FieldAccount, op.account).Msg("claim mirror queue full, dropping update")
	}
}

// apply writes queued changes one at a time so Redis sees them in claim order.
func (m *RedisMirror) apply() {
	defer close(m.done)
	for op := range m.ops {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.write(ctx, op)
		cancel()
	}
}

func (m *RedisMirror) write(ctx context.Context, op mirrorOp) {
	key := m.keyFor(op.account)
	l := log.L()

	if op.value == "" {
		m.mu.Lock()
		delete(m.managedKeys, key)
		m.mu.Unlock()

		if err := m.client.Del(ctx, key).Err(); err != nil {
			l.Error().Str("key", key).Err(err).Msg("failed to delete claim key")
		}
		return
	}

	m.mu.Lock()
	m.managedKeys[key] = op.value
	m.mu.Unlock()

	if err := m.client.Set(ctx, key, op.value, m.keyTTL).Err(); err != nil {
		l.Error().Str("key", key).Err(err).Msg("failed to write claim key")
	}
}

func (m *RedisMirror) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", m.heartbeatInterval).Dur("ttl", m.keyTTL).Msg("claim mirror heartbeat started")
	return nil
}

func (m *RedisMirror) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshKeys(ctx)
		}
	}
}

func (m *RedisMirror) refreshKeys(ctx context.Context) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.managedKeys))
	for k := range m.managedKeys {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	for _, key := range keys {
		if err := m.client.Expire(ctx, key, m.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh claim key")
		}
	}
}

func (m *RedisMirror) StopHeartbeat() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Close stops the heartbeat, drains pending writes and closes the client.
// Updates observed after Close are ignored.
func (m *RedisMirror) Close() error {
	m.StopHeartbeat()

	m.opsMu.Lock()
	if m.closed {
		m.opsMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.ops)
	m.opsMu.Unlock()

	<-m.done
	return m.client.Close()
}
