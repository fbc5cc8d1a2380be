// Package compute provides the execution context shared by all loss
// operations: worker-pool fan-out across batch and point dimensions, backend
// selection, structured logging and the operation error kinds.
//
// A Context is an explicit value passed into every operation. There is no
// ambient global device or queue; callers own the Context and may share it
// across goroutines. Operations are synchronous: when a call returns, every
// output buffer is fully written.
package compute

import (
	"log/slog"
	"runtime"

	"github.com/google/uuid"

	"github.com/orneryd/pointloss/pkg/compute/vulkan"
	"github.com/orneryd/pointloss/pkg/pointset"
)

// Backend identifies the execution backend of a Context.
type Backend string

const (
	// BackendCPU executes kernels on the host with SIMD acceleration.
	BackendCPU Backend = "cpu"
	// BackendVulkan selects a Vulkan compute device. Kernel dispatch is
	// not wired yet; selecting it verifies device availability and falls
	// back to CPU execution.
	BackendVulkan Backend = "vulkan"
)

// Config controls Context construction.
type Config struct {
	// Workers bounds the number of concurrent kernel goroutines.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
	// Backend selects the execution backend. Empty means BackendCPU.
	Backend Backend
	// FallbackOnError falls back to the CPU backend when the requested
	// accelerator backend is unavailable, instead of failing.
	FallbackOnError bool
	// Logger receives structured operation logs. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the default Context configuration: CPU backend,
// GOMAXPROCS workers, accelerator fallback enabled.
func DefaultConfig() *Config {
	return &Config{
		Workers:         0,
		Backend:         BackendCPU,
		FallbackOnError: true,
	}
}

// Context is the execution context for loss operations.
type Context struct {
	workers int
	backend Backend
	log     *slog.Logger
	id      string
}

// New creates a Context from cfg. A nil cfg means DefaultConfig().
func New(cfg *Config) (*Context, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendCPU
	}
	if backend == BackendVulkan && !vulkan.IsAvailable() {
		if !cfg.FallbackOnError {
			return nil, vulkan.ErrNotAvailable
		}
		logger.Warn("vulkan unavailable, falling back to cpu backend")
		backend = BackendCPU
	}

	c := &Context{
		workers: workers,
		backend: backend,
		log:     logger,
		id:      uuid.NewString(),
	}
	c.log.Debug("compute context created",
		"context_id", c.id, "backend", string(backend), "workers", workers)
	return c, nil
}

// Workers returns the concurrency bound of the context.
func (c *Context) Workers() int { return c.workers }

// Backend returns the active execution backend.
func (c *Context) Backend() Backend { return c.backend }

// Logger returns the context logger.
func (c *Context) Logger() *slog.Logger { return c.log }

// ID returns the context's unique identifier, tagged on all operation logs.
func (c *Context) ID() string { return c.id }

// ValidatePair checks the shared preconditions of every two-set operation:
// matching batch dimension, non-empty sets, finite coordinates.
func ValidatePair(op string, d, q pointset.Set) error {
	if d.N == 0 || len(d.Data) == 0 {
		return &EmptySetError{Op: op, Arg: "dataset"}
	}
	if q.N == 0 || len(q.Data) == 0 {
		return &EmptySetError{Op: op, Arg: "query"}
	}
	if d.B != q.B {
		return &ShapeError{
			Op:   op,
			Arg:  "query",
			Want: shape3(d.B, q.N),
			Got:  shape3(q.B, q.N),
		}
	}
	if !d.Finite() {
		return &NotFiniteError{Op: op, Arg: "dataset"}
	}
	if !q.Finite() {
		return &NotFiniteError{Op: op, Arg: "query"}
	}
	return nil
}
