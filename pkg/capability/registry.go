// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"sync/atomic"

	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/llm"
)

// Registry is an insertion-ordered collection of capabilities, unique by
// name. Registration happens during setup; once the owning agent starts
// serving, the registry is sealed and further registration is rejected,
// since nothing synchronizes appends against in-flight dispatch reads.
type Registry struct {
	caps   []*Capability
	index  map[string]*Capability
	sealed atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Capability)}
}

// Register adds a capability. A duplicate name fails with a duplicate-tool
// error and leaves the registry untouched.
func (r *Registry) Register(c *Capability) error {
	if c == nil {
		return errors.New(errors.CodeInvalidInput, "capability is required", nil)
	}
	if r.sealed.Load() {
		return errors.Newf(errors.CodeConfigError, "cannot register %q: agent is already serving", c.Name())
	}
	if _, exists := r.index[c.Name()]; exists {
		return errors.Newf(errors.CodeDuplicateTool, "capability %q is already registered", c.Name())
	}
	r.caps = append(r.caps, c)
	r.index[c.Name()] = c
	return nil
}

// RegisterMany registers capabilities in order, stopping at the first
// failure. Entries registered before the failing one stay registered.
func (r *Registry) RegisterMany(caps []*Capability) error {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the capability registered under name.
func (r *Registry) Find(name string) (*Capability, bool) {
	c, ok := r.index[name]
	return c, ok
}

// List returns the capabilities in registration order.
func (r *Registry) List() []*Capability {
	return append([]*Capability(nil), r.caps...)
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int { return len(r.caps) }

// Definitions derives LLM function descriptors for every capability, in
// registration order.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.caps))
	for _, c := range r.caps {
		defs = append(defs, c.Definition())
	}
	return defs
}

// Seal marks the registry read-only. Called when the agent starts serving.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}
