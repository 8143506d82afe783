// Package directory is the in-memory stand-in for the user-directory
// collaborator. The real deployment resolves display names from the user
// service; the relay only needs the lookup interface.
package directory

import (
	"sort"
	"sync"

	"github.com/library-min/TF-Planner-sub000/internal/models"
)

// UserDirectory maps user ids to display names.
type UserDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

// New builds a directory seeded with the given users.
func New(seed ...models.Participant) *UserDirectory {
	d := &UserDirectory{names: make(map[string]string)}
	for _, p := range seed {
		d.Upsert(p.ID, p.Name)
	}
	return d
}

// Upsert registers or renames a user.
func (d *UserDirectory) Upsert(id, name string) {
	if id == "" {
		return
	}
	if name == "" {
		name = id
	}
	d.mu.Lock()
	d.names[id] = name
	d.mu.Unlock()
}

// DisplayName resolves a user's display name.
func (d *UserDirectory) DisplayName(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[id]
	return name, ok
}

// List returns all known users sorted by id.
func (d *UserDirectory) List() []models.Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Participant, 0, len(d.names))
	for id, name := range d.names {
		out = append(out, models.Participant{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
