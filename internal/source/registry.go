package source

import (
	"sync"

	"github.com/gitter-badger/hifi/internal/mixer"
)

// client is one connected peer's sources: exactly one avatar buffer plus
// zero or more injector buffers (spec.md section 2 component 3).
type client struct {
	avatar    *AudioSource
	injectors map[string]*AudioSource
}

// Registry is the per-process Source Registry: every connected peer's
// avatar and injector sources, keyed by peer id.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

// AddAvatar registers peerID's avatar source, creating the client entry if
// this is its first source. Re-adding an existing peer replaces its
// avatar.
func (r *Registry) AddAvatar(peerID string, isStereo bool) *AudioSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clientLocked(peerID)
	c.avatar = NewAvatar(peerID, isStereo)
	return c.avatar
}

// AddInjector registers a new injector source owned by peerID, keyed by
// injectorID (unique per peer).
func (r *Registry) AddInjector(peerID, injectorID string, isStereo bool, radius, attenuationRatio float64) *AudioSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clientLocked(peerID)
	src := NewInjector(peerID+"/"+injectorID, isStereo, radius, attenuationRatio)
	c.injectors[injectorID] = src
	return src
}

// EnsureInjector returns peerID's injectorID source, creating it (and the
// client entry) on first sight; an existing injector has its radius and
// attenuation ratio refreshed in place so its ring history survives
// parameter changes mid-stream.
func (r *Registry) EnsureInjector(peerID, injectorID string, isStereo bool, radius, attenuationRatio float64) *AudioSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clientLocked(peerID)
	if src, ok := c.injectors[injectorID]; ok {
		src.setInjectorParams(radius, attenuationRatio)
		return src
	}
	src := NewInjector(peerID+"/"+injectorID, isStereo, radius, attenuationRatio)
	c.injectors[injectorID] = src
	return src
}

// RemoveInjector drops one injector belonging to peerID.
func (r *Registry) RemoveInjector(peerID, injectorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[peerID]
	if !ok {
		return
	}
	delete(c.injectors, injectorID)
}

// RemoveClient deregisters peerID and all of its sources.
func (r *Registry) RemoveClient(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, peerID)
}

// Avatar returns peerID's avatar source, if any.
func (r *Registry) Avatar(peerID string) (*AudioSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[peerID]
	if !ok || c.avatar == nil {
		return nil, false
	}
	return c.avatar, true
}

// Listeners returns a frozen, per-call snapshot of every peer's avatar
// source: each is a Listener in its own right (spec.md section 3: "a
// Listener is an AudioSource of kind Avatar that also receives a mix").
// Snapshotting here, once per tick, is what gives every listener mixed
// this tick an identical view of a given source's state even though the
// ingest path mutates sources concurrently between calls.
func (r *Registry) Listeners() []mixer.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mixer.Source, 0, len(r.clients))
	for _, c := range r.clients {
		if c.avatar != nil {
			out = append(out, c.avatar.snapshot())
		}
	}
	return out
}

// AllSources returns a frozen, per-call snapshot of every known source
// (avatars and injectors) as mixer.Source values, the set the Listener
// Mix Engine walks each tick. See Listeners for why these are snapshots
// rather than live *AudioSource values.
func (r *Registry) AllSources() []mixer.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mixer.Source, 0, len(r.clients)*2)
	for _, c := range r.clients {
		if c.avatar != nil {
			out = append(out, c.avatar.snapshot())
		}
		for _, inj := range c.injectors {
			out = append(out, inj.snapshot())
		}
	}
	return out
}

// PreFrame runs the pre-frame readiness sweep (spec.md section 4.4 step 1)
// over every source in the registry.
func (r *Registry) PreFrame() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		if c.avatar != nil {
			c.avatar.sweep()
		}
		for _, inj := range c.injectors {
			inj.sweep()
		}
	}
}

// PostFrame advances the output cursor of every source that was eligible
// this tick (invariant I4, P8: "each source's cursor advances exactly once
// per tick it was eligible"). A source sweep marked not-ready never had
// its frame read by any listener's mix (mixer.eligible checks Ready()), so
// advancing it here would desync its output cursor from its write cursor;
// it catches up once PushFrame resumes and Ready() goes true again.
func (r *Registry) PostFrame() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		if c.avatar != nil && c.avatar.Ready() {
			c.avatar.Advance()
		}
		for _, inj := range c.injectors {
			if inj.Ready() {
				inj.Advance()
			}
		}
	}
}

func (r *Registry) clientLocked(peerID string) *client {
	c, ok := r.clients[peerID]
	if !ok {
		c = &client{injectors: make(map[string]*AudioSource)}
		r.clients[peerID] = c
	}
	return c
}
