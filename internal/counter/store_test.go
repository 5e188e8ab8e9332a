package counter

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

func TestStore_IncrementAndDrain(t *testing.T) {
	s := NewStore(4)
	k := Key{Metric: "jenkins.job.started", Hostname: "ci-1", Tags: tags.New("job:a")}

	s.Increment(k)
	s.Increment(k)
	s.Increment(Key{Metric: "jenkins.job.started", Hostname: "ci-1", Tags: tags.New("job:b")})

	assert.Equal(t, 2, s.Len())

	got := s.DrainAndReset()
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[k])
	assert.Equal(t, 0, s.Len(), "после drain хранилище пустое")
}

func TestStore_TagOrderIndependent(t *testing.T) {
	s := NewStore(0)
	s.Increment(Key{Metric: "m", Tags: tags.New("a:1", "b:2")})
	s.Increment(Key{Metric: "m", Tags: tags.New("b:2", "a:1")})

	got := s.DrainAndReset()
	require.Len(t, got, 1)
	for k, v := range got {
		assert.Equal(t, "m", k.Metric)
		assert.Equal(t, int64(2), v)
	}
}

func TestStore_DistinctHostnames(t *testing.T) {
	s := NewStore(0)
	s.Increment(Key{Metric: "m", Hostname: "a"})
	s.Increment(Key{Metric: "m", Hostname: "b"})

	assert.Len(t, s.DrainAndReset(), 2)
}

func TestStore_DrainEmpty(t *testing.T) {
	got := NewStore(2).DrainAndReset()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestStore_ConcurrentDrainNoLoss проверяет, что сумма всех drain равна числу инкрементов.
func TestStore_ConcurrentDrainNoLoss(t *testing.T) {
	const (
		writers    = 8
		perWriter  = 5000
		drainEvery = 50
	)
	s := NewStore(DefaultShards)
	keys := []Key{
		{Metric: "m1", Hostname: "h"},
		{Metric: "m2", Hostname: "h", Tags: tags.New("x:1")},
		{Metric: "m3"},
	}

	var (
		mu    sync.Mutex
		total int64
		wg    sync.WaitGroup
		done    = make(chan struct{})
		drained = make(chan struct{})
	)
	collect := func(m map[Key]int64) {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range m {
			total += v
		}
	}

	go func() {
		defer close(drained)
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			if i%drainEvery == 0 {
				collect(s.DrainAndReset())
			}
			runtime.Gosched()
		}
	}()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Increment(keys[(w+i)%len(keys)])
			}
		}(w)
	}
	wg.Wait()
	close(done)
	<-drained
	collect(s.DrainAndReset())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(writers*perWriter), total)
}
