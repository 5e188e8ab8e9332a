package telemetry

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Backend'ы телеметрии.
const (
	BackendHTTP  = "http"
	BackendAgent = "agent"
)

// Значения по умолчанию.
const (
	DefaultAPIURL        = "https://api.datadoghq.com/api/"
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultAgentHost     = "localhost"
	DefaultAgentPort     = 8125
	DefaultFlushInterval = 10 * time.Second
)

// Config — настройки доставки телеметрии.
type Config struct {
	// Backend — "http" (прямой API) или "agent" (DogStatsD relay).
	Backend string

	// APIURL — базовый URL API, заканчивается на "/". Только для http.
	APIURL string
	// APIKey — ключ API. Только для http. Никогда не логируется.
	APIKey string
	// HTTPTimeout — таймаут одного HTTP запроса.
	HTTPTimeout time.Duration

	// AgentHost/AgentPort — UDP адрес DogStatsD.
	AgentHost string
	AgentPort int
	// AgentSocket — путь к UDS сокету; имеет приоритет над host/port.
	AgentSocket string

	// Hostname — имя хоста, которым помечается телеметрия. Пусто — системное.
	Hostname string
	// GlobalTags — теги, добавляемые ко всем отправкам ("name:value").
	GlobalTags []string

	// FlushInterval — период сброса счётчиков; он же интервал rate метрик.
	FlushInterval time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию (http backend без ключа).
func DefaultConfig() Config {
	return Config{
		Backend:       BackendHTTP,
		APIURL:        DefaultAPIURL,
		HTTPTimeout:   DefaultHTTPTimeout,
		AgentHost:     DefaultAgentHost,
		AgentPort:     DefaultAgentPort,
		FlushInterval: DefaultFlushInterval,
	}
}

// Validate проверяет конфигурацию выбранного backend'а.
func (c *Config) Validate() error {
	if c.FlushInterval < time.Second || c.FlushInterval%time.Second != 0 {
		return ErrFlushInterval
	}
	switch c.Backend {
	case BackendHTTP:
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrAPIURLInvalid
		}
		if strings.TrimSpace(c.APIKey) == "" {
			return ErrAPIKeyRequired
		}
		if c.HTTPTimeout <= 0 {
			return ErrHTTPTimeout
		}
	case BackendAgent:
		if c.AgentSocket == "" && (c.AgentHost == "" || c.AgentPort <= 0 || c.AgentPort > 65535) {
			return ErrAgentAddress
		}
	default:
		return ErrUnknownBackend
	}
	return nil
}

// AgentAddress возвращает адрес в формате datadog-go: "unix:///path" или "host:port".
func (c *Config) AgentAddress() string {
	if c.AgentSocket != "" {
		return "unix://" + c.AgentSocket
	}
	return net.JoinHostPort(c.AgentHost, strconv.Itoa(c.AgentPort))
}

// normalizedAPIURL гарантирует завершающий "/".
func (c *Config) normalizedAPIURL() string {
	if strings.HasSuffix(c.APIURL, "/") {
		return c.APIURL
	}
	return c.APIURL + "/"
}
