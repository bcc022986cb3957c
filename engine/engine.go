package engine

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/mediafs/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// Engine owns the wazero runtime and the compiled guest module.
// Engine is safe for concurrent use; the Contexts it produces are not.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// New creates a wazero-backed engine
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
	}, nil
}

// LoadGuest compiles the media-provider guest module. It validates the
// binary but does not instantiate it; instantiation happens at Attach, on
// the dispatch goroutine.
func (e *Engine) LoadGuest(ctx context.Context, wasmBytes []byte) error {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Load("compile guest module", err)
	}
	e.compiled = compiled
	return nil
}

// Attach instantiates the guest and resolves its entry points. It must be
// called from the goroutine that will own the returned Context; the bridge
// calls it exactly once, from the dispatch goroutine.
func (e *Engine) Attach(ctx context.Context) (*Context, error) {
	if e.compiled == nil {
		return nil, errors.NotInitialized(errors.PhaseAttach, "guest module")
	}

	// Anonymous instance; the engine never instantiates the guest twice.
	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAttach, errors.KindTrap, err, "instantiate guest")
	}

	c, err := newContext(ctx, mod)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}

	logger().Debug("guest instantiated, entry points cached")
	return c, nil
}

// Detach releases the guest instance produced by Attach.
func (e *Engine) Detach(ctx context.Context, c *Context) error {
	if c == nil {
		return nil
	}
	return c.mod.Close(ctx)
}

// Close releases the engine and its compiled module. All Contexts must be
// detached before calling this.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
