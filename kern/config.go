package kern

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keyboard overflow policies.
const (
	// OverflowOverwrite drops the oldest buffered key when the buffer is full.
	OverflowOverwrite = "overwrite"
	// OverflowReject drops the incoming key when the buffer is full.
	OverflowReject = "reject"
)

// Config is the serialisable kernel configuration. Numeric fields accept hex
// literals in YAML (base: 0x20000).
type Config struct {
	Heap     HeapConfig     `json:"heap" yaml:"heap"`
	Stack    StackConfig    `json:"stack" yaml:"stack"`
	Lock     LockConfig     `json:"lock" yaml:"lock"`
	Keyboard KeyboardConfig `json:"keyboard" yaml:"keyboard"`
}

// HeapConfig places the allocator region.
type HeapConfig struct {
	Base uint32 `json:"base" yaml:"base"`
	Size int    `json:"size" yaml:"size"`
	// Mmap backs the region with an anonymous mapping instead of a Go slice.
	Mmap bool `json:"mmap" yaml:"mmap"`
}

// StackConfig describes task stack memory.
type StackConfig struct {
	Base      uint32 `json:"base" yaml:"base"`
	Top       uint32 `json:"top" yaml:"top"`
	SlabSize  uint32 `json:"slabSize" yaml:"slabSize"`
	InitialSP uint32 `json:"initialSP" yaml:"initialSP"`
	// Floor is the lowest address a task stack slab may start at. Zero means Base.
	Floor uint32 `json:"floor" yaml:"floor"`
}

// LockConfig tunes every kernel lock.
type LockConfig struct {
	Spins          int  `json:"spins" yaml:"spins"`
	RecursionCheck bool `json:"recursionCheck" yaml:"recursionCheck"`
}

// KeyboardConfig tunes keyboard input.
type KeyboardConfig struct {
	Overflow string `json:"overflow" yaml:"overflow"`
}

// DefaultConfig returns the stock layout: a 64 KiB heap at 0x20000 and 16
// stack slabs of 4 KiB below 0x90000.
func DefaultConfig() *Config {
	return &Config{
		Heap: HeapConfig{
			Base: 0x20000,
			Size: 0x10000,
		},
		Stack: StackConfig{
			Base:      0x80000,
			Top:       0x90000,
			SlabSize:  0x1000,
			InitialSP: 0x8fff0,
		},
		Lock: LockConfig{
			Spins: 4,
		},
		Keyboard: KeyboardConfig{
			Overflow: OverflowOverwrite,
		},
	}
}

// Validate returns the aggregated errors describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Heap.Size < 16 {
		errs = append(errs, fmt.Errorf("heap.size must be >= 16, got %d", c.Heap.Size))
	}
	if c.Heap.Base%8 != 0 {
		errs = append(errs, fmt.Errorf("heap.base 0x%x must be 8-aligned", c.Heap.Base))
	}
	if uint64(c.Heap.Base)+uint64(max(c.Heap.Size, 0)) > 1<<32 {
		errs = append(errs, fmt.Errorf("heap 0x%x+0x%x exceeds 32-bit space", c.Heap.Base, c.Heap.Size))
	}

	s := c.Stack
	if s.SlabSize < 32 || s.SlabSize&(s.SlabSize-1) != 0 {
		errs = append(errs, fmt.Errorf("stack.slabSize 0x%x must be a power of two >= 32", s.SlabSize))
	}
	if s.Top <= s.Base {
		errs = append(errs, fmt.Errorf("stack.top 0x%x must be above stack.base 0x%x", s.Top, s.Base))
	}
	if s.InitialSP <= s.Base || s.InitialSP > s.Top {
		errs = append(errs, fmt.Errorf("stack.initialSP 0x%x outside (0x%x, 0x%x]", s.InitialSP, s.Base, s.Top))
	}
	if s.Floor != 0 && (s.Floor < s.Base || s.Floor >= s.Top) {
		errs = append(errs, fmt.Errorf("stack.floor 0x%x outside [0x%x, 0x%x)", s.Floor, s.Base, s.Top))
	}
	heapEnd := uint64(c.Heap.Base) + uint64(max(c.Heap.Size, 0))
	if uint64(s.Base) < heapEnd && uint64(c.Heap.Base) < uint64(s.Top) {
		errs = append(errs, fmt.Errorf("heap and stack memory overlap"))
	}

	if c.Lock.Spins < 0 {
		errs = append(errs, fmt.Errorf("lock.spins must be >= 0, got %d", c.Lock.Spins))
	}
	switch c.Keyboard.Overflow {
	case OverflowOverwrite, OverflowReject:
	default:
		errs = append(errs, fmt.Errorf("keyboard.overflow must be %q or %q, got %q",
			OverflowOverwrite, OverflowReject, c.Keyboard.Overflow))
	}
	return errors.Join(errs...)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("kern: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kern: invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kern: read config: %w", err)
	}
	return ParseConfig(data)
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
