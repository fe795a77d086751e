package mapview

import (
	"errors"
	"sync"
)

// IconConfig holds the marker asset URLs the browser map should use instead of
// the toolkit's built-in relative paths.
type IconConfig struct {
	IconURL       string `json:"iconUrl"`
	IconRetinaURL string `json:"iconRetinaUrl"`
	ShadowURL     string `json:"shadowUrl"`
}

// ErrIconsNotInitialized is returned by Icons before Init ran.
var ErrIconsNotInitialized = errors.New("map icons not initialized")

// IconRegistry stores the default icon configuration. Init is an explicit
// startup step; only the first call has any effect.
type IconRegistry struct {
	once   sync.Once
	mu     sync.RWMutex
	config *IconConfig
}

// DefaultIcons is the registry used by the running server.
var DefaultIcons = &IconRegistry{}

// Init stores cfg if the registry has not been initialized yet and reports
// whether this call did the initialization.
func (r *IconRegistry) Init(cfg IconConfig) bool {
	applied := false
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := cfg
		r.config = &c
		applied = true
	})
	return applied
}

// Icons returns the configured icons.
func (r *IconRegistry) Icons() (IconConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.config == nil {
		return IconConfig{}, ErrIconsNotInitialized
	}
	return *r.config, nil
}
