package acceptlist

import (
	"fmt"

	"github.com/rigado/blesim"
)

// Entry is one Filter Accept List record. Entries are equal when both the
// address and its type match.
type Entry struct {
	Type blesim.AddrType `json:"type"`
	Addr blesim.Addr     `json:"addr"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%v/%v", e.Type, e.Addr)
}

type AddResult int

const (
	Inserted AddResult = iota
	AlreadyPresent
	Full
)

func (r AddResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already present"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("addresult(%d)", int(r))
	}
}

type RemoveResult int

const (
	Removed RemoveResult = iota
	NotPresent
)

func (r RemoveResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotPresent:
		return "not present"
	default:
		return fmt.Sprintf("removeresult(%d)", int(r))
	}
}

// Store is a bounded, insertion-ordered set of entries.
// It is not safe for concurrent use; the owning controller serializes access.
type Store struct {
	maxSize int
	entries []Entry
}

// New returns an empty store holding at most maxSize entries.
// A negative size is treated as zero.
func New(maxSize int) *Store {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Store{
		maxSize: maxSize,
		entries: make([]Entry, 0, maxSize),
	}
}

// Add inserts e. Adding an entry that is already present is not an error.
func (s *Store) Add(e Entry) AddResult {
	if s.indexOf(e) >= 0 {
		return AlreadyPresent
	}
	if len(s.entries) >= s.maxSize {
		return Full
	}
	s.entries = append(s.entries, e)
	return Inserted
}

// Remove deletes e, keeping the order of the remaining entries.
func (s *Store) Remove(e Entry) RemoveResult {
	i := s.indexOf(e)
	if i < 0 {
		return NotPresent
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return Removed
}

func (s *Store) Clear() {
	s.entries = s.entries[:0]
}

func (s *Store) Contains(e Entry) bool {
	return s.indexOf(e) >= 0
}

func (s *Store) Size() int {
	return len(s.entries)
}

func (s *Store) MaxSize() int {
	return s.maxSize
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) indexOf(e Entry) int {
	for i, v := range s.entries {
		if v == e {
			return i
		}
	}
	return -1
}
