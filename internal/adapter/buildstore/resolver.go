package buildstore

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// DefaultCacheSize — размер LRU кэша найденных ссылок.
const DefaultCacheSize = 4096

// DefaultLookupTimeout — таймаут одного запроса ссылки.
const DefaultLookupTimeout = 5 * time.Second

type linkKey struct {
	job    string
	before int
	filter Filter
}

// Resolver строит build.Record, чьи ссылки Previous* разрешаются лениво
// запросами к Store. Найденные записи кэшируются в LRU; ошибки поиска
// логируются и дают отсутствующую ссылку.
type Resolver struct {
	store   Store
	cache   *lru.Cache[linkKey, Entry]
	timeout time.Duration
	logger  logging.Logger
}

// NewResolver создаёт Resolver. size <= 0 означает DefaultCacheSize.
func NewResolver(store Store, size int, logger logging.Logger) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New возвращает ошибку только для size <= 0
	cache, _ := lru.New[linkKey, Entry](size)
	return &Resolver{
		store:   store,
		cache:   cache,
		timeout: DefaultLookupTimeout,
		logger:  logging.Component(logger, "buildstore.resolver"),
	}
}

// Record возвращает ленивую запись для e. ctx используется для запросов ссылок.
func (r *Resolver) Record(ctx context.Context, e Entry) build.Record {
	return &record{ctx: ctx, resolver: r, entry: e}
}

// previous возвращает ссылку или nil.
// Кэшируются только найденные записи: сборка с меньшим номером может прийти позже.
func (r *Resolver) previous(ctx context.Context, job string, before int, f Filter) build.Record {
	key := linkKey{job: job, before: before, filter: f}
	if e, ok := r.cache.Get(key); ok {
		return &record{ctx: ctx, resolver: r, entry: e}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	e, found, err := r.store.Previous(lookupCtx, job, before, f)
	if err != nil {
		r.logger.Warn("не удалось получить предыдущую сборку, ссылка считается отсутствующей",
			"job", job,
			"before", before,
			"filter", f.String(),
			"error", err.Error(),
		)
		return nil
	}
	if !found {
		return nil
	}
	r.cache.Add(key, e)
	return &record{ctx: ctx, resolver: r, entry: e}
}

// Len возвращает число закэшированных ссылок.
func (r *Resolver) Len() int {
	return r.cache.Len()
}

// record — build.Record поверх Entry.
type record struct {
	ctx      context.Context
	resolver *Resolver
	entry    Entry
}

var _ build.Record = (*record)(nil)

func (rec *record) Job() string            { return rec.entry.Job }
func (rec *record) Number() int            { return rec.entry.Number }
func (rec *record) StartTimeMillis() int64 { return rec.entry.StartedAt }
func (rec *record) DurationMillis() int64  { return rec.entry.DurationMs }
func (rec *record) Result() build.Result   { return rec.entry.Result }
func (rec *record) Hostname() string       { return rec.entry.Hostname }
func (rec *record) Tags() tags.Set         { return rec.entry.Tags }

func (rec *record) PreviousBuiltBuild() build.Record {
	return rec.link(FilterBuilt)
}

func (rec *record) PreviousSuccessfulBuild() build.Record {
	return rec.link(FilterSuccessful)
}

func (rec *record) PreviousNotFailedBuild() build.Record {
	return rec.link(FilterNotFailed)
}

func (rec *record) link(f Filter) build.Record {
	return rec.resolver.previous(rec.ctx, rec.entry.Job, rec.entry.Number, f)
}
