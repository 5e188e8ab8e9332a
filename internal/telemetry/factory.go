package telemetry

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/Kargones/ci-telemetry/internal/counter"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// hostnameConfigurer — resolver, которому можно передать новое сконфигурированное имя.
type hostnameConfigurer interface {
	SetConfigured(name string)
}

// Factory выбирает backend по текущей конфигурации.
// Клиенты кэшируются и делят один counter.Store.
type Factory struct {
	mu    sync.RWMutex
	cfg   Config
	deps  Deps
	dial  Dialer
	http  *HTTPClient
	agent *AgentClient

	logger logging.Logger
}

// NewFactory создаёт Factory. Конфигурация проверяется сразу.
// dial == nil означает DialStatsd.
func NewFactory(cfg Config, deps Deps, dial Dialer) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	f := &Factory{
		cfg:    cfg,
		deps:   deps,
		dial:   dial,
		logger: logging.Component(deps.Logger, "telemetry.factory"),
	}
	f.applyHostname(cfg.Hostname)
	return f, nil
}

// Current возвращает клиент для backend'а из текущей конфигурации.
func (f *Factory) Current() Client {
	f.mu.RLock()
	backend := f.cfg.Backend
	var c Client
	switch {
	case backend == BackendAgent && f.agent != nil:
		c = f.agent
	case backend == BackendHTTP && f.http != nil:
		c = f.http
	}
	f.mu.RUnlock()
	if c != nil {
		return c
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientLocked()
}

func (f *Factory) clientLocked() Client {
	if f.cfg.Backend == BackendAgent {
		if f.agent == nil {
			f.agent = NewAgentClient(f.cfg, f.deps, f.dial)
		}
		return f.agent
	}
	if f.http == nil {
		f.http = NewHTTPClient(f.cfg, f.deps)
	}
	return f.http
}

// Reconfigure применяет новую конфигурацию. HTTP клиент пересоздаётся,
// relay принудительно переоткрывает соединение по новому адресу.
// Накопленные счётчики сохраняются. Период задачи сброса меняет
// Flusher.Reload, вызывающий Reconfigure.
func (f *Factory) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	old := f.cfg
	f.cfg = cfg
	f.http = nil
	agent := f.agent
	f.mu.Unlock()

	f.applyHostname(cfg.Hostname)

	if agent != nil {
		agent.setInterval(cfg.FlushInterval)
		agent.SetAddress(cfg.AgentAddress())
		if cfg.Backend == BackendAgent {
			agent.Reinitialize()
		} else {
			_ = agent.Close()
		}
	}

	f.logger.Info("конфигурация телеметрии применена",
		"backend", cfg.Backend,
		"previous_backend", old.Backend,
	)
	return nil
}

func (f *Factory) applyHostname(name string) {
	if hc, ok := f.deps.Hosts.(hostnameConfigurer); ok {
		hc.SetConfigured(name)
	}
}

// Config возвращает копию текущей конфигурации.
func (f *Factory) Config() Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// GlobalTags возвращает глобальные теги текущей конфигурации.
func (f *Factory) GlobalTags() tags.Set {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return tags.New(f.cfg.GlobalTags...)
}

// Hostname возвращает имя хоста по умолчанию.
func (f *Factory) Hostname() string {
	return f.deps.Hosts.Hostname()
}

// Counters возвращает общий counter.Store.
func (f *Factory) Counters() *counter.Store {
	return f.deps.Counters
}

// Close закрывает кэшированные клиенты.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.agent != nil {
		err = multierr.Append(err, f.agent.Close())
	}
	if f.http != nil {
		err = multierr.Append(err, f.http.Close())
	}
	return err
}
