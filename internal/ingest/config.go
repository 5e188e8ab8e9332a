package ingest

import (
	"errors"
	"net"
	"time"
)

// Значения по умолчанию.
const (
	DefaultListenAddr      = "127.0.0.1:8127"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Ошибки конфигурации.
var (
	ErrListenAddrInvalid = errors.New("ingest: listen address must be host:port")
	ErrMaxBodyInvalid    = errors.New("ingest: max body size must be positive")
)

// Config — настройки HTTP API приёма уведомлений.
type Config struct {
	ListenAddr      string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      DefaultListenAddr,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return ErrListenAddrInvalid
	}
	if c.MaxBodyBytes <= 0 {
		return ErrMaxBodyInvalid
	}
	return nil
}
