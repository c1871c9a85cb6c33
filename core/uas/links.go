package uas

import (
	"slices"

	"github.com/kilianp07/gcsproxy/core/link"
)

// AddLink makes the vehicle reachable through l. Adding a known link is a
// no-op. Only the id is kept: the transport owns the arena entry, so a link
// it has unregistered stays absent for dispatch.
func (v *Vehicle) AddLink(l link.Link) {
	if l == nil {
		return
	}
	id := l.ID()
	v.mu.Lock()
	defer v.mu.Unlock()
	if slices.Contains(v.links, id) {
		return
	}
	v.links = append(v.links, id)
	v.log.Infow("link added", map[string]any{"vehicle_id": v.id, "link_id": id})
}

// Links returns the ids of the links the vehicle is currently reachable
// through. Links closed or unregistered by their transport are left out.
func (v *Vehicle) Links() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.liveLinksLocked()
}

func (v *Vehicle) liveLinksLocked() []string {
	out := make([]string, 0, len(v.links))
	for _, id := range v.links {
		if v.arena.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (v *Vehicle) pruneLinksLocked() {
	live := v.liveLinksLocked()
	if len(live) == len(v.links) {
		return
	}
	for _, id := range v.links {
		if !slices.Contains(live, id) {
			v.log.Infow("link removed", map[string]any{"vehicle_id": v.id, "link_id": id})
		}
	}
	v.links = live
}

func (v *Vehicle) hasLinkLocked(id string) bool {
	return slices.Contains(v.links, id)
}
