package domain

import (
	"encoding/json"
	"sort"
)

// Allocation partitions line item indices between the two participants.
// An index belongs to at most one participant; it may belong to neither.
// The zero value is an empty allocation.
type Allocation struct {
	a map[int]struct{}
	b map[int]struct{}
}

func (al *Allocation) set(p Participant) map[int]struct{} {
	if p == ParticipantB {
		if al.b == nil {
			al.b = make(map[int]struct{})
		}
		return al.b
	}
	if al.a == nil {
		al.a = make(map[int]struct{})
	}
	return al.a
}

// Toggle flips idx in p's set and removes it from the other participant.
// It returns whether idx is assigned to p afterwards.
func (al *Allocation) Toggle(p Participant, idx int) bool {
	mine := al.set(p)
	if _, ok := mine[idx]; ok {
		delete(mine, idx)
		return false
	}
	mine[idx] = struct{}{}
	delete(al.set(p.Other()), idx)
	return true
}

// Assign gives idx to p, taking it away from the other participant.
func (al *Allocation) Assign(p Participant, idx int) {
	al.set(p)[idx] = struct{}{}
	delete(al.set(p.Other()), idx)
}

// Unassign removes idx from both participants.
func (al *Allocation) Unassign(idx int) {
	delete(al.a, idx)
	delete(al.b, idx)
}

// Owner returns the participant idx is assigned to, if any.
func (al Allocation) Owner(idx int) (Participant, bool) {
	if _, ok := al.a[idx]; ok {
		return ParticipantA, true
	}
	if _, ok := al.b[idx]; ok {
		return ParticipantB, true
	}
	return "", false
}

// Has reports whether idx is assigned to p.
func (al Allocation) Has(p Participant, idx int) bool {
	owner, ok := al.Owner(idx)
	return ok && owner == p
}

// Indices returns p's assigned indices in ascending order.
func (al Allocation) Indices(p Participant) []int {
	src := al.a
	if p == ParticipantB {
		src = al.b
	}
	out := make([]int, 0, len(src))
	for idx := range src {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of assigned indices across both participants.
func (al Allocation) Len() int {
	return len(al.a) + len(al.b)
}

// Reset clears both sets.
func (al *Allocation) Reset() {
	al.a = nil
	al.b = nil
}

// Clone returns an independent copy.
func (al Allocation) Clone() Allocation {
	var c Allocation
	for idx := range al.a {
		c.set(ParticipantA)[idx] = struct{}{}
	}
	for idx := range al.b {
		c.set(ParticipantB)[idx] = struct{}{}
	}
	return c
}

type allocationJSON struct {
	A []int `json:"a"`
	B []int `json:"b"`
}

func (al Allocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(allocationJSON{
		A: al.Indices(ParticipantA),
		B: al.Indices(ParticipantB),
	})
}

// UnmarshalJSON applies assignments in order, so an index listed for both
// participants ends up with B.
func (al *Allocation) UnmarshalJSON(data []byte) error {
	var raw allocationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	al.Reset()
	for _, idx := range raw.A {
		al.Assign(ParticipantA, idx)
	}
	for _, idx := range raw.B {
		al.Assign(ParticipantB, idx)
	}
	return nil
}
