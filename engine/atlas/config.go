package atlas

import (
	"fmt"
	"os"

	"github.com/calderaengine/caldera/engine/core"
	emath "github.com/calderaengine/caldera/engine/math"
	"github.com/calderaengine/caldera/engine/renderer"
	"github.com/pelletier/go-toml/v2"
)

// Config is the atlas configuration, loadable from a TOML document.
// There is no process-wide default atlas: callers construct as many
// configured instances as they need and pass them around explicitly.
type Config struct {
	LogLevel string `toml:"log_level"`
	// Pages start at the initial size and grow by doubling area up to the
	// maximum.
	PageInitialWidth  int `toml:"page_initial_width"`
	PageInitialHeight int `toml:"page_initial_height"`
	PageMaxWidth      int `toml:"page_max_width"`
	PageMaxHeight     int `toml:"page_max_height"`
	// MaxPages caps the number of pages; zero means unbounded.
	MaxPages int `toml:"max_pages"`
	// Replicated border pixels around each region's content.
	Padding int `toml:"padding"`
	// Byte channels per pixel; 4 is RGBA.
	ChannelCount    int    `toml:"channel_count"`
	MaxTextureCount uint32 `toml:"max_texture_count"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		PageInitialWidth:  512,
		PageInitialHeight: 512,
		PageMaxWidth:      4096,
		PageMaxHeight:     4096,
		Padding:           1,
		ChannelCount:      4,
		MaxTextureCount:   1024,
	}
}

// LoadConfig reads a TOML file over the defaults, so partial documents
// are valid.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("atlas config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("atlas config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PageInitialWidth <= 0 || c.PageInitialHeight <= 0 {
		return fmt.Errorf("atlas config: initial page size %dx%d must be positive", c.PageInitialWidth, c.PageInitialHeight)
	}
	if c.PageMaxWidth < c.PageInitialWidth || c.PageMaxHeight < c.PageInitialHeight {
		return fmt.Errorf("atlas config: maximum page size %dx%d below initial %dx%d",
			c.PageMaxWidth, c.PageMaxHeight, c.PageInitialWidth, c.PageInitialHeight)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("atlas config: max pages %d must be >= 0", c.MaxPages)
	}
	if c.Padding < 0 {
		return fmt.Errorf("atlas config: padding %d must be >= 0", c.Padding)
	}
	if c.ChannelCount <= 0 {
		return fmt.Errorf("atlas config: channel count %d must be positive", c.ChannelCount)
	}
	if c.MaxTextureCount == 0 {
		return fmt.Errorf("atlas config: max texture count must be > 0")
	}
	return nil
}

func (c *Config) growthPolicy() GrowthPolicy {
	return GrowthPolicy{
		// Power-of-two pages keep doubling exact and suit most devices.
		InitialWidth:  emath.NextPowerOf2(c.PageInitialWidth),
		InitialHeight: emath.NextPowerOf2(c.PageInitialHeight),
		MaxWidth:      emath.NextPowerOf2(c.PageMaxWidth),
		MaxHeight:     emath.NextPowerOf2(c.PageMaxHeight),
		MaxPages:      c.MaxPages,
	}
}

// Atlas bundles the page set, registry and sync manager built from one
// configuration over one surface backend.
type Atlas struct {
	Pages    *PageSet
	Textures *Registry
	Sync     *SyncManager
}

func New(cfg *Config, backend renderer.SurfaceBackend) (*Atlas, error) {
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LoggerSetLevel(cfg.LogLevel)

	pages := NewPageSet(backend, cfg.growthPolicy(), cfg.ChannelCount)
	registry, err := NewRegistry(&RegistryConfig{
		MaxTextureCount: cfg.MaxTextureCount,
		Padding:         cfg.Padding,
	}, pages)
	if err != nil {
		return nil, err
	}
	return &Atlas{
		Pages:    pages,
		Textures: registry,
		Sync:     NewSyncManager(registry),
	}, nil
}

func (a *Atlas) Shutdown() {
	a.Pages.Shutdown()
}
