// Package hostname определяет имя хоста, которым помечается телеметрия.
package hostname

import (
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

// Unknown — значение, когда ни один источник не дал валидного имени.
const Unknown = "unknown"

// DefaultTTL — время жизни закэшированного имени.
const DefaultTTL = 5 * time.Minute

const cacheKey = "hostname"

// maxLength — максимальная длина имени по RFC 1123.
const maxLength = 255

var (
	labelRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

	localNames = map[string]struct{}{
		"localhost":               {},
		"localhost.localdomain":   {},
		"localhost6.localdomain6": {},
		"ip6-localhost":           {},
	}
)

// Valid проверяет имя по правилам RFC 1123 и отбрасывает localhost-подобные имена.
func Valid(name string) bool {
	if name == "" || len(name) > maxLength {
		return false
	}
	if _, local := localNames[strings.ToLower(name)]; local {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(name, "."), ".") {
		if !labelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// Resolver возвращает имя хоста: сконфигурированное → os.Hostname() → "unknown".
// Результат кэшируется на DefaultTTL. Безопасен для конкурентного использования.
type Resolver struct {
	mu         sync.RWMutex
	configured string

	cache  *cache.Cache
	lookup func() (string, error)
	logger logging.Logger
}

// NewResolver создаёт Resolver. configured может быть пустым.
func NewResolver(configured string, logger logging.Logger) *Resolver {
	return &Resolver{
		configured: strings.TrimSpace(configured),
		cache:      cache.New(DefaultTTL, 2*DefaultTTL),
		lookup:     os.Hostname,
		logger:     logging.Component(logger, "hostname"),
	}
}

// Hostname возвращает текущее имя хоста. Никогда не возвращает пустую строку.
func (r *Resolver) Hostname() string {
	if v, ok := r.cache.Get(cacheKey); ok {
		return v.(string)
	}
	name := r.resolve()
	r.cache.SetDefault(cacheKey, name)
	return name
}

func (r *Resolver) resolve() string {
	r.mu.RLock()
	configured := r.configured
	r.mu.RUnlock()

	if configured != "" {
		if Valid(configured) {
			return configured
		}
		r.logger.Warn("сконфигурированный hostname невалиден, используется системный", "hostname", configured)
	}

	name, err := r.lookup()
	if err != nil {
		r.logger.Warn("не удалось получить системный hostname", "error", err.Error())
		return Unknown
	}
	if !Valid(name) {
		r.logger.Warn("системный hostname невалиден", "hostname", name)
		return Unknown
	}
	return name
}

// SetConfigured меняет сконфигурированное имя и сбрасывает кэш.
func (r *Resolver) SetConfigured(name string) {
	r.mu.Lock()
	r.configured = strings.TrimSpace(name)
	r.mu.Unlock()
	r.cache.Flush()
}
