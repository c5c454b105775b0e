package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labara-io/labara-go/internal/domain"
)

func configWithFlags(keys ...string) *domain.Configuration {
	cfg := &domain.Configuration{
		CreatedAt: time.Now(),
		Flags:     make(map[string]domain.Flag, len(keys)),
	}
	for _, key := range keys {
		cfg.Flags[key] = domain.Flag{Key: key, Enabled: true}
	}
	return cfg
}

func TestStore_EmptyUntilSet(t *testing.T) {
	s := New()

	assert.Nil(t, s.Get())
	assert.False(t, s.Initialized())

	_, ok := s.GetFlag("checkout-flow")
	assert.False(t, ok)
}

func TestStore_GetFlag(t *testing.T) {
	s := New()
	s.Set(configWithFlags("checkout-flow"))

	flag, ok := s.GetFlag("checkout-flow")
	require.True(t, ok)
	assert.Equal(t, "checkout-flow", flag.Key)

	_, ok = s.GetFlag("ghost")
	assert.False(t, ok)
}

func TestStore_ObfuscatedLookup(t *testing.T) {
	cfg := &domain.Configuration{
		CreatedAt:  time.Now(),
		Obfuscated: true,
		Flags: map[string]domain.Flag{
			// md5("checkout-flow")
			"689bb38a0345a57fcd70e6c4ef06d069": {Key: "689bb38a0345a57fcd70e6c4ef06d069", Enabled: true},
		},
	}

	s := New()
	s.Set(cfg)

	// Callers keep using the plain key; the store hashes it.
	_, ok := s.GetFlag("checkout-flow")
	assert.True(t, ok)

	_, ok = s.GetFlag("689bb38a0345a57fcd70e6c4ef06d069")
	assert.False(t, ok)
}

func TestStore_InitializedSemantics(t *testing.T) {
	s := New()

	// An empty snapshot does not count as initialized.
	s.Set(&domain.Configuration{CreatedAt: time.Now()})
	assert.False(t, s.Initialized())

	s.Set(configWithFlags("checkout-flow"))
	assert.True(t, s.Initialized())

	// Initialized is sticky: a later empty snapshot does not reset it.
	s.Set(&domain.Configuration{CreatedAt: time.Now()})
	assert.True(t, s.Initialized())
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := New()
	s.Set(configWithFlags("flag-0"))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg := s.Get()
				// A reader must always see a complete snapshot.
				if !assert.NotNil(t, cfg) {
					return
				}
				assert.Len(t, cfg.Flags, 1)
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		s.Set(configWithFlags(fmt.Sprintf("flag-%d", i)))
	}
	close(stop)
	wg.Wait()
}

func TestCachedSource(t *testing.T) {
	s := New()
	first := configWithFlags("checkout-flow")
	s.Set(first)

	cached, err := NewCachedSource(s, 128)
	require.NoError(t, err)
	defer cached.Close()

	flag, ok := cached.GetFlag("checkout-flow")
	require.True(t, ok)
	assert.Equal(t, "checkout-flow", flag.Key)
	cached.Wait()

	// Cached answer for the same snapshot.
	flag, ok = cached.GetFlag("checkout-flow")
	require.True(t, ok)
	assert.Equal(t, "checkout-flow", flag.Key)

	_, ok = cached.GetFlag("ghost")
	assert.False(t, ok)

	// A new snapshot invalidates by key: the old entry is simply never
	// asked for again.
	second := configWithFlags("new-dashboard")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	s.Set(second)

	_, ok = cached.GetFlag("checkout-flow")
	assert.False(t, ok)
	flag, ok = cached.GetFlag("new-dashboard")
	require.True(t, ok)
	assert.Equal(t, "new-dashboard", flag.Key)
}

func TestCachedSource_EmptyInner(t *testing.T) {
	cached, err := NewCachedSource(New(), 16)
	require.NoError(t, err)
	defer cached.Close()

	_, ok := cached.GetFlag("checkout-flow")
	assert.False(t, ok)
	assert.Nil(t, cached.Configuration())
}
