package models

// Roster is an insertion-ordered mapping of participant id to display name.
// It replaces the parallel id/name slices of the wire format internally so
// the two can never drift out of alignment.
type Roster struct {
	ids   []string
	names map[string]string
}

// NewRoster builds a roster from id/name pairs, dropping duplicate ids.
func NewRoster(participants ...Participant) *Roster {
	r := &Roster{names: make(map[string]string)}
	for _, p := range participants {
		r.Add(p.ID, p.Name)
	}
	return r
}

// Add inserts a participant. Re-adding an existing id only refreshes the
// display name when a non-empty one is given. Returns true if the id was new.
func (r *Roster) Add(id, name string) bool {
	if id == "" {
		return false
	}
	if _, ok := r.names[id]; ok {
		if name != "" {
			r.names[id] = name
		}
		return false
	}
	if name == "" {
		name = id
	}
	r.ids = append(r.ids, id)
	r.names[id] = name
	return true
}

// Remove deletes a participant, preserving the order of the rest.
func (r *Roster) Remove(id string) bool {
	if _, ok := r.names[id]; !ok {
		return false
	}
	delete(r.names, id)
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return true
}

// Has reports membership.
func (r *Roster) Has(id string) bool {
	_, ok := r.names[id]
	return ok
}

// NameOf returns the display name for the id, empty if absent.
func (r *Roster) NameOf(id string) string {
	return r.names[id]
}

// Len returns the participant count.
func (r *Roster) Len() int {
	return len(r.ids)
}

// IDs returns the participant ids in insertion order.
func (r *Roster) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Names returns display names index-aligned with IDs.
func (r *Roster) Names() []string {
	out := make([]string, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.names[id])
	}
	return out
}

// Clone returns an independent copy.
func (r *Roster) Clone() *Roster {
	clone := &Roster{
		ids:   make([]string, len(r.ids)),
		names: make(map[string]string, len(r.names)),
	}
	copy(clone.ids, r.ids)
	for id, name := range r.names {
		clone.names[id] = name
	}
	return clone
}
