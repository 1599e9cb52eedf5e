package capture

import "github.com/Zahlii/photobooth/pkg/booth"

// Stack is the append-only list of artifacts captured in the current session.
// Individual captures come first; the composed result, once rendered, is last.
type Stack struct {
	items    []*booth.SnapshotResponse
	composed bool
}

// Push appends an individual capture.
func (s *Stack) Push(snap *booth.SnapshotResponse) {
	s.items = append(s.items, snap)
}

// PushComposed appends the composed result.
func (s *Stack) PushComposed(snap *booth.SnapshotResponse) {
	s.items = append(s.items, snap)
	s.composed = true
}

// Len returns the number of entries, composed result included.
func (s *Stack) Len() int {
	return len(s.items)
}

// Captures returns the number of individual captures.
func (s *Stack) Captures() int {
	if s.composed {
		return len(s.items) - 1
	}
	return len(s.items)
}

// Composed returns the composed result, or nil before composition.
func (s *Stack) Composed() *booth.SnapshotResponse {
	if !s.composed {
		return nil
	}
	return s.items[len(s.items)-1]
}

// ImagePaths returns the image paths of the individual captures in capture order.
func (s *Stack) ImagePaths() []string {
	paths := make([]string, 0, s.Captures())
	for _, snap := range s.items[:s.Captures()] {
		paths = append(paths, snap.ImagePath)
	}
	return paths
}

// AllOwnedPaths returns the union of AllPaths across the stack, first occurrence order.
func (s *Stack) AllOwnedPaths() []string {
	return ownedPaths(s.items...)
}

// Clear empties the stack without deleting anything on the backend.
func (s *Stack) Clear() {
	s.items = nil
	s.composed = false
}

func ownedPaths(snaps ...*booth.SnapshotResponse) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		for _, p := range snap.AllPaths {
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	return paths
}
