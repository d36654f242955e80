package sandbox

import (
	"errors"
	"time"
)

// Config defines sandbox configuration.
type Config struct {
	Timeout       time.Duration // per-call execution budget
	EnableConsole bool          // expose console.log/warn/error to scripts
}

// DefaultConfig returns the standard plugin script configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		EnableConsole: true,
	}
}

// StoreAPI is the persistence surface exposed to plugin scripts as the
// `store` global. Implementations are namespaced per plugin id.
type StoreAPI interface {
	Get(key string, def any) any
	Set(key string, value any) error
	Delete(key string) error
}

var (
	ErrClosed      = errors.New("sandbox runtime is closed")
	ErrNoExport    = errors.New("script exposes no export object")
	ErrInterrupted = errors.New("script execution interrupted")
)
