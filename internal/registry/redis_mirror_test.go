package registry

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/tt-live-music-player/internal/config"
)

func unstartedMirror(t *testing.T) *RedisMirror {
	t.Helper()
	// The client is never used; no worker is started.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	return newRedisMirror(client, config.MirrorConfig{
		Prefix:            "jukebox:registry",
		KeyTTL:            time.Second,
		HeartbeatInterval: time.Second,
	}, "node-a")
}

func TestRedisMirror_QueuesInClaimOrder(t *testing.T) {
	req := require.New(t)
	m := unstartedMirror(t)
	r := New(m)

	req.NoError(r.Acquire("streamer", "s1"))
	req.True(r.Release("streamer", "s1"))

	first := <-m.ops
	second := <-m.ops
	req.Equal(mirrorOp{account: "streamer", value: "s1@node-a"}, first)
	req.Equal(mirrorOp{account: "streamer"}, second)
	req.Equal("jukebox:registry:claim:streamer", m.keyFor("streamer"))
}

func TestRedisMirror_FullQueueNeverBlocks(t *testing.T) {
	m := unstartedMirror(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < mirrorQueueSize+10; i++ {
			m.Claimed(Claim{Account: "a", Owner: "s"})
		}
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	require.Len(t, m.ops, mirrorQueueSize)
}
