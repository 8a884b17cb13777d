// Package chains holds the fixed registry of networks the optimizer is
// allowed to route between, including per-pair bridge latency estimates.
package chains

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
)

// ID identifies a supported network. Unregistered ids are rejected
// everywhere; there is no implicit default chain.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Chain describes a registered network.
type Chain struct {
	ID             ID
	Name           string
	NativeSymbol   string
	NativeDecimals int
	Enabled        bool
	// BridgeTimes maps a destination chain to the estimated time a bridge
	// transfer to it takes. Missing entries mean "no route".
	BridgeTimes map[ID]time.Duration
}

// chainSpec is the YAML shape of a registry entry.
type chainSpec struct {
	ID             uint64            `yaml:"id"`
	Name           string            `yaml:"name"`
	NativeSymbol   string            `yaml:"native_symbol"`
	NativeDecimals int               `yaml:"native_decimals"`
	Enabled        *bool             `yaml:"enabled"`
	BridgeTimes    map[uint64]string `yaml:"bridge_times"`
}

type registryFile struct {
	Chains []chainSpec `yaml:"chains"`
}

// Registry is the ordered set of supported chains. Registration order is
// significant: the optimal-chain search breaks cost ties in favor of the
// earliest registered candidate.
type Registry struct {
	mu    sync.RWMutex
	byID  map[ID]*Chain
	order []ID
}

// NewRegistry builds a registry from the given chains, preserving order.
func NewRegistry(list []Chain) (*Registry, error) {
	r := &Registry{byID: make(map[ID]*Chain)}
	for i := range list {
		c := list[i]
		if err := r.add(&c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadRegistry reads a YAML registry file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse chain registry: %w", err)
	}

	chains := make([]Chain, 0, len(file.Chains))
	for _, spec := range file.Chains {
		c := Chain{
			ID:             ID(spec.ID),
			Name:           spec.Name,
			NativeSymbol:   spec.NativeSymbol,
			NativeDecimals: spec.NativeDecimals,
			Enabled:        true,
			BridgeTimes:    make(map[ID]time.Duration, len(spec.BridgeTimes)),
		}
		if spec.Enabled != nil {
			c.Enabled = *spec.Enabled
		}
		for dst, dur := range spec.BridgeTimes {
			d, err := time.ParseDuration(dur)
			if err != nil {
				return nil, fmt.Errorf("chain %d: bridge time to %d: %w", spec.ID, dst, err)
			}
			c.BridgeTimes[ID(dst)] = d
		}
		chains = append(chains, c)
	}
	return NewRegistry(chains)
}

func (r *Registry) add(c *Chain) error {
	if c.ID == 0 {
		return apperrors.ValidationError(nil, "chain id must be non-zero")
	}
	if c.Name == "" || c.NativeSymbol == "" {
		return apperrors.ValidationError(nil, "chain name and native symbol are required")
	}
	if c.NativeDecimals <= 0 {
		return apperrors.ValidationError(nil, "native decimals must be positive")
	}
	if _, exists := r.byID[c.ID]; exists {
		return apperrors.ValidationError(nil, fmt.Sprintf("chain %s already registered", c.ID))
	}
	if c.BridgeTimes == nil {
		c.BridgeTimes = make(map[ID]time.Duration)
	}
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// Add registers a new chain. Administrator only.
func (r *Registry) Add(cred auth.Credential, c Chain) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "adding chains requires the administrator credential")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(&c)
}

// Get returns the chain for id, or a ValidationError for unregistered ids.
func (r *Registry) Get(id ID) (Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Chain{}, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", id))
	}
	return *c, nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Enabled reports whether id is registered and currently routable.
func (r *Registry) Enabled(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return ok && c.Enabled
}

// SetEnabled toggles whether a chain may be used as a swap destination.
// Administrator only.
func (r *Registry) SetEnabled(cred auth.Credential, id ID, enabled bool) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "chain configuration requires the administrator credential")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", id))
	}
	c.Enabled = enabled
	return nil
}

// All returns the registered chains in registration order.
func (r *Registry) All() []Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chain, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// IDs returns the registered chain ids in registration order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// BridgeTime returns the estimated bridge latency from src to dst.
// Zero src->dst time means the pair has no configured route.
func (r *Registry) BridgeTime(src, dst ID) (time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[src]
	if !ok {
		return 0, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", src))
	}
	if _, ok := r.byID[dst]; !ok {
		return 0, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", dst))
	}
	d, ok := c.BridgeTimes[dst]
	if !ok {
		return 0, apperrors.ValidationError(nil, fmt.Sprintf("no bridge route from %s to %s", src, dst))
	}
	return d, nil
}

// SortedIDs returns ids sorted numerically; used only for deterministic
// logging output, never for tie-breaking.
func (r *Registry) SortedIDs() []ID {
	ids := r.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
