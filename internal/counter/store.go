// Package counter агрегирует счётчики метрик между периодическими сбросами.
package counter

import (
	"sync"

	"github.com/twmb/murmur3"
	"go.uber.org/atomic"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// DefaultShards — количество шардов Store по умолчанию.
const DefaultShards = 16

// Key идентифицирует счётчик. Два ключа равны, если равны метрика, хост и
// множество тегов (порядок тегов не учитывается).
type Key struct {
	Metric   string
	Hostname string
	Tags     tags.Set
}

// canonical возвращает строку, однозначно определяющую ключ.
// '\x00' не встречается в именах метрик и хостов.
func (k Key) canonical() string {
	return k.Metric + "\x00" + k.Hostname + "\x00" + k.Tags.Key()
}

type entry struct {
	key Key
	n   *atomic.Int64
}

// shard хранит часть счётчиков.
// Инкременты держат read-сторону mu, подмена live-таблицы держит write-сторону:
// инкремент либо полностью попадает в старую таблицу, либо в новую.
type shard struct {
	mu   sync.RWMutex
	live *sync.Map // canonical -> *entry
}

// Store — потокобезопасный набор счётчиков с атомарным DrainAndReset.
// Нулевое значение непригодно, используйте NewStore.
type Store struct {
	shards []*shard
}

// NewStore создаёт Store с n шардами (DefaultShards при n <= 0).
func NewStore(n int) *Store {
	if n <= 0 {
		n = DefaultShards
	}
	s := &Store{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{live: new(sync.Map)}
	}
	return s
}

func (s *Store) shardFor(canonical string) *shard {
	return s.shards[murmur3.StringSum64(canonical)%uint64(len(s.shards))]
}

// Increment увеличивает счётчик key на единицу, создавая его при отсутствии.
// Не выполняет I/O и не возвращает ошибок.
func (s *Store) Increment(key Key) {
	c := key.canonical()
	sh := s.shardFor(c)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	v, ok := sh.live.Load(c)
	if !ok {
		v, _ = sh.live.LoadOrStore(c, &entry{key: key, n: atomic.NewInt64(0)})
	}
	v.(*entry).n.Inc()
}

// DrainAndReset атомарно (по шардам) забирает все накопленные значения и
// обнуляет хранилище. Каждый инкремент попадает ровно в один результат.
// При отсутствии инкрементов возвращает пустую (не nil) map.
func (s *Store) DrainAndReset() map[Key]int64 {
	out := make(map[Key]int64)
	for _, sh := range s.shards {
		sh.mu.Lock()
		old := sh.live
		sh.live = new(sync.Map)
		sh.mu.Unlock()

		old.Range(func(_, v any) bool {
			e := v.(*entry)
			if n := e.n.Load(); n > 0 {
				out[e.key] = n
			}
			return true
		})
	}
	return out
}

// Len возвращает текущее количество различных ключей.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		sh.live.Range(func(_, _ any) bool {
			total++
			return true
		})
		sh.mu.RUnlock()
	}
	return total
}
