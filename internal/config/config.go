// Package config loads the on-disk configuration file named on the
// command line, layering it over the built-in defaults (no command
// line flag overrides a config option), with JSON-with-comments
// parsed via hujson.Standardize before encoding/json ever sees it.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config mirrors the configuration options recognized by a corekv
// process: DynBuf sizing, slab geometry and eviction policy, the hash
// table's bucket count, and the three listener addresses.
type Config struct {
	BufInitSize  int `json:"buf_init_size"`
	DbufMaxPower int `json:"dbuf_max_power"`

	SlabSize          uint32   `json:"slab_size"`
	SlabChunkSize     uint32   `json:"slab_chunk_size"`
	SlabGrowthFactor  float64  `json:"slab_growth_factor"`
	SlabMaxbytes      uint64   `json:"slab_maxbytes"`
	SlabUseCas        bool     `json:"slab_use_cas"`
	SlabPrealloc      bool     `json:"slab_prealloc"`
	SlabEvictOpt      string   `json:"slab_evict_opt"` // "none" | "random" | "lru"
	SlabUseFreeq      bool     `json:"slab_use_freeq"`
	SlabProfile       []uint32 `json:"slab_profile,omitempty"`
	SlabProfileLastID uint8    `json:"slab_profile_last_id,omitempty"`
	SlabHashPower     uint8    `json:"slab_hash_power"`

	ListenRESP     string `json:"listen_resp"`
	ListenMemcache string `json:"listen_memcache"`
	ListenPing     string `json:"listen_ping"`

	LogLevel  string `json:"log_level"`
	DumpStats string `json:"dump_stats,omitempty"`
}

// Default returns the built-in configuration used when no config file
// is given.
func Default() Config {
	return Config{
		BufInitSize:      1 << 10,
		DbufMaxPower:     10,
		SlabSize:         1 << 20,
		SlabChunkSize:    48,
		SlabGrowthFactor: 1.25,
		SlabMaxbytes:     64 << 20,
		SlabUseCas:       true,
		SlabPrealloc:     false,
		SlabEvictOpt:     "lru",
		SlabUseFreeq:     true,
		SlabHashPower:    16,
		ListenRESP:       ":6380",
		ListenMemcache:   ":11211",
		ListenPing:       ":11212",
		LogLevel:         "info",
	}
}

// Load reads path (if non-empty) as a JSONC document and merges it
// over Default(); a path that doesn't exist is reported as an error
// only when explicitly named, matching agent-task's "explicit config
// file must exist" rule for its own -c/--config flag.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var fileCfg Config
	if err := json.Unmarshal(standardized, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return merge(cfg, fileCfg), nil
}

// merge overlays any field of overlay that differs from the zero
// value onto base, field by field, the same explicit-field approach
// agent-task's mergeConfig takes rather than a generic struct merge.
func merge(base, overlay Config) Config {
	if overlay.BufInitSize != 0 {
		base.BufInitSize = overlay.BufInitSize
	}
	if overlay.DbufMaxPower != 0 {
		base.DbufMaxPower = overlay.DbufMaxPower
	}
	if overlay.SlabSize != 0 {
		base.SlabSize = overlay.SlabSize
	}
	if overlay.SlabChunkSize != 0 {
		base.SlabChunkSize = overlay.SlabChunkSize
	}
	if overlay.SlabGrowthFactor != 0 {
		base.SlabGrowthFactor = overlay.SlabGrowthFactor
	}
	if overlay.SlabMaxbytes != 0 {
		base.SlabMaxbytes = overlay.SlabMaxbytes
	}
	base.SlabUseCas = overlay.SlabUseCas || base.SlabUseCas
	base.SlabPrealloc = overlay.SlabPrealloc || base.SlabPrealloc
	if overlay.SlabEvictOpt != "" {
		base.SlabEvictOpt = overlay.SlabEvictOpt
	}
	base.SlabUseFreeq = overlay.SlabUseFreeq || base.SlabUseFreeq
	if len(overlay.SlabProfile) > 0 {
		base.SlabProfile = overlay.SlabProfile
		base.SlabProfileLastID = overlay.SlabProfileLastID
	}
	if overlay.SlabHashPower != 0 {
		base.SlabHashPower = overlay.SlabHashPower
	}
	if overlay.ListenRESP != "" {
		base.ListenRESP = overlay.ListenRESP
	}
	if overlay.ListenMemcache != "" {
		base.ListenMemcache = overlay.ListenMemcache
	}
	if overlay.ListenPing != "" {
		base.ListenPing = overlay.ListenPing
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.DumpStats != "" {
		base.DumpStats = overlay.DumpStats
	}
	return base
}

// Validate rejects configurations that would misbehave at runtime
// rather than failing confusingly deep inside internal/slab.
func Validate(cfg Config) error {
	if cfg.SlabChunkSize == 0 || cfg.SlabSize == 0 {
		return fmt.Errorf("slab_chunk_size and slab_size must be non-zero")
	}
	if cfg.SlabChunkSize > cfg.SlabSize {
		return fmt.Errorf("slab_chunk_size (%d) must not exceed slab_size (%d)", cfg.SlabChunkSize, cfg.SlabSize)
	}
	if cfg.SlabGrowthFactor <= 1.0 {
		return fmt.Errorf("slab_growth_factor must be greater than 1.0, got %v", cfg.SlabGrowthFactor)
	}
	switch cfg.SlabEvictOpt {
	case "none", "random", "lru":
	default:
		return fmt.Errorf("slab_evict_opt must be one of none|random|lru, got %q", cfg.SlabEvictOpt)
	}
	if cfg.ListenRESP == "" && cfg.ListenMemcache == "" && cfg.ListenPing == "" {
		return fmt.Errorf("at least one of listen_resp, listen_memcache, listen_ping must be set")
	}
	return nil
}
