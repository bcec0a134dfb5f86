package rpcfacade

import (
	"errors"

	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/cachecore"
	"github.com/Keksclan/rawrcache/policy"
)

// ErrNoFactory is returned by GetOrSet when no registered group matches the
// requested key.
var ErrNoFactory = errors.New("rpcfacade: no factory registered for key")

// FactoryRegistry maps an incoming key to the server-side Factory and
// CacheItemOptions that should back it. A remote GetOrSet call cannot ship
// arbitrary Go code across the wire, so the façade resolves "how to compute
// this key" the same way the teacher resolves "which policy applies to this
// method": via [policy.Resolver]'s exact/prefix/regex matching with
// priority tie-breaking (policy/matcher.go, policy/group.go), reused here
// against cache keys instead of gRPC method names.
type FactoryRegistry struct {
	groups []*policy.GroupBuilder
	byName map[string]registration
}

type registration struct {
	factory cachecore.Factory
	opts    cacheitem.Options
}

// NewFactoryRegistry builds an empty registry. Call Bind for every key
// pattern the façade should be able to compute before serving traffic.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{byName: make(map[string]registration)}
}

// Bind associates a named key-matching group (built the same way a method
// policy group is built, e.g. policy.Group("prices").Prefix("price:")) with
// the factory and options that should serve matching keys. The group's
// Policy fields are unused by the façade and may be left zero-valued.
func (r *FactoryRegistry) Bind(group *policy.GroupBuilder, factory cachecore.Factory, opts cacheitem.Options) *FactoryRegistry {
	group.Policy(policy.Policy{})
	r.groups = append(r.groups, group)
	r.byName[group.Name()] = registration{factory: factory, opts: opts}
	return r
}

// Resolve finds the registered factory and options for key, rebuilding the
// resolver from the currently bound groups.
func (r *FactoryRegistry) Resolve(key string) (cachecore.Factory, cacheitem.Options, bool) {
	if len(r.groups) == 0 {
		return nil, cacheitem.Options{}, false
	}
	name, _, ok := policy.NewResolver(r.groups...).Resolve(key)
	if !ok {
		return nil, cacheitem.Options{}, false
	}
	reg, ok := r.byName[name]
	if !ok {
		return nil, cacheitem.Options{}, false
	}
	return reg.factory, reg.opts, true
}
