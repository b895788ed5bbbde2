package cache

import "sync"

// ResolverFunc produces a value on first request.
type ResolverFunc func() (any, error)

// OnDemand resolves named values lazily. Each resolver runs at most
// once; the result is retained for later gets. A resolver error is not
// retained, so the next get retries.
type OnDemand struct {
	mu        sync.Mutex
	resolvers map[string]ResolverFunc
	values    map[string]any
}

// NewOnDemand creates an OnDemand map, optionally pre-seeded with
// resolvers.
func NewOnDemand(resolvers map[string]ResolverFunc) *OnDemand {
	o := &OnDemand{
		resolvers: make(map[string]ResolverFunc, len(resolvers)),
		values:    make(map[string]any),
	}
	for name, fn := range resolvers {
		o.resolvers[name] = fn
	}
	return o
}

// Register installs (or replaces) the resolver for name. Replacing a
// resolver does not discard a value already resolved under that name.
func (o *OnDemand) Register(name string, fn ResolverFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolvers[name] = fn
}

// Get returns the value for name, running its resolver on first use.
// Unknown names return an error matching ErrNoResolver.
func (o *OnDemand) Get(name string) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if val, ok := o.values[name]; ok {
		return val, nil
	}

	fn, ok := o.resolvers[name]
	if !ok {
		return nil, ErrUnknownName(name)
	}

	val, err := fn()
	if err != nil {
		return nil, err
	}
	o.values[name] = val
	return val, nil
}

// Resolved reports whether name has already been resolved.
func (o *OnDemand) Resolved(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.values[name]
	return ok
}
