package resolver

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/util"
	"log/slog"
	"sync"
)

// Factory creates a fresh, uninitialized resolver.
type Factory func() Resolver

// Chain is the ordered list of ecosystem resolvers. The first one whose
// CanHandle accepts a root services the whole project.
type Chain []Factory

// DefaultChain checks ecosystem markers in priority order.
func DefaultChain() Chain {
	return Chain{
		func() Resolver { return NewTypeScriptResolver() },
		func() Resolver { return NewNodeResolver() },
		func() Resolver { return NewPythonResolver() },
		func() Resolver { return NewRubyResolver() },
		func() Resolver { return NewCargoResolver() },
		func() Resolver { return NewComposerResolver() },
		func() Resolver { return NewDotnetResolver() },
		func() Resolver { return NewJVMResolver() },
		func() Resolver { return NewGoModResolver() },
	}
}

// Detect picks and initializes the resolver for root. A root with no marker
// gets the plain resolver. Files whose language is outside the chosen
// ecosystem are still served by the plain rules.
func (c Chain) Detect(root string) (Resolver, error) {
	if !util.DirExists(root) {
		err := errors.New(errors.CodeValidationError, "project root is not a directory")
		err = errors.AddContext(err, errors.CtxPath, root)
		return nil, errors.AddContext(err, errors.CtxStage, errors.StageResolve)
	}

	fallback := NewPlainResolver()
	if err := fallback.Initialize(root); err != nil {
		return nil, err
	}

	for _, factory := range c {
		r := factory()
		if !r.CanHandle(root) {
			continue
		}
		if err := r.Initialize(root); err != nil {
			// A broken manifest degrades to the plain rules.
			slog.Warn("resolver initialization failed", "resolver", r.Name(), "path", root, "error", err)
			break
		}
		slog.Debug("resolver selected", "resolver", r.Name(), "path", root)
		return &scoped{primary: r, fallback: fallback}, nil
	}
	slog.Debug("resolver selected", "resolver", fallback.Name(), "path", root)
	return fallback, nil
}

// languageScoped is implemented by resolvers that only understand some
// languages.
type languageScoped interface {
	Handles(lang parser.Language) bool
}

type scoped struct {
	primary  Resolver
	fallback *PlainResolver
}

func (s *scoped) Name() string { return s.primary.Name() }

func (s *scoped) CanHandle(root string) bool { return s.primary.CanHandle(root) }

func (s *scoped) Initialize(root string) error { return nil }

func (s *scoped) statCacheStats() StatCacheStats {
	st := s.fallback.statCacheStats()
	if sc, ok := s.primary.(statCached); ok {
		st = st.add(sc.statCacheStats())
	}
	return st
}

func (s *scoped) ResolveImport(req Request) ResolvedImport {
	if ls, ok := s.primary.(languageScoped); ok && !ls.Handles(req.Language) {
		return s.fallback.ResolveImport(req)
	}
	return s.primary.ResolveImport(req)
}

// Cache detects and initializes one resolver per project root, once, for the
// lifetime of a build.
type Cache struct {
	chain   Chain
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once     sync.Once
	resolver Resolver
	err      error
}

func NewCache(chain Chain) *Cache {
	if chain == nil {
		chain = DefaultChain()
	}
	return &Cache{chain: chain, entries: make(map[string]*cacheEntry)}
}

// For returns the initialized resolver for root. Concurrent callers for the
// same root block on a single initialization.
func (c *Cache) For(root string) (Resolver, error) {
	key := util.NormalizeAbsPath(root)
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.resolver, entry.err = c.chain.Detect(key)
	})
	return entry.resolver, entry.err
}

// StatCacheStats reports the stat cache of root's resolver. It is false when
// root has not been resolved.
func (c *Cache) StatCacheStats(root string) (StatCacheStats, bool) {
	c.mu.Lock()
	_, ok := c.entries[util.NormalizeAbsPath(root)]
	c.mu.Unlock()
	if !ok {
		return StatCacheStats{}, false
	}
	r, err := c.For(root)
	if err != nil {
		return StatCacheStats{}, false
	}
	sc, ok := r.(statCached)
	if !ok {
		return StatCacheStats{}, false
	}
	return sc.statCacheStats(), true
}
