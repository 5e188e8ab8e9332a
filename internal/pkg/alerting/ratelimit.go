package alerting

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// RateLimiter пропускает не больше одного алерта на код за окно.
// Состояние живёт в памяти процесса, просроченные записи удаляет janitor go-cache.
type RateLimiter struct {
	sent *cache.Cache
}

// NewRateLimiter создаёт RateLimiter с окном window.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{sent: cache.New(window, window)}
}

// Allow сообщает, можно ли отправить алерт с кодом errorCode, и при true
// открывает для кода новое окно. cache.Add атомарен, поэтому из одновременных
// вызовов для одного кода true получает ровно один.
func (r *RateLimiter) Allow(errorCode string) bool {
	return r.sent.Add(errorCode, struct{}{}, cache.DefaultExpiration) == nil
}

// Reset закрывает окно кода досрочно.
func (r *RateLimiter) Reset(errorCode string) {
	r.sent.Delete(errorCode)
}
