// Package registry implements the Command Registry (spec.md §4.5): a
// fixed-capacity table mapping command identifiers and optional shortcut
// aliases to handler callables, with first-match lookup in insertion
// order (an id or shortcut matches only as a whole token). There is no
// deregistration, matching the no-heap, immutable-after-
// startup discipline the teacher's config tables use (appserver.go's
// command-line flag table is built once and never mutated after Parse).
package registry

import "strings"

// MinCapacity is the floor spec.md §3 sets on the registry's fixed
// capacity (it speaks of "≥23" live entries).
const MinCapacity = 23

// MaxIDLen bounds a single command identifier's length, independent of the
// table's entry capacity — a single entry's id is stored in a small fixed
// array in the original firmware, not sized off the table capacity.
const MaxIDLen = 30

// HandlerFunc implements a command. args is the text following the
// matched token (with one separator byte already skipped); w is the
// bounded reply writer backed by the reserved OutCmd payload region.
type HandlerFunc func(args string, w *ReplyWriter)

// Entry is one registered command (spec.md §3's "Command entry" tuple).
type Entry struct {
	ID       string
	Shortcut string
	Handler  HandlerFunc
	Desc     string
	Group    string
}

// live reports whether both ID and Handler are present, per spec.md §3.
func (e Entry) live() bool { return e.ID != "" && e.Handler != nil }

// Registry is the fixed-capacity command table.
type Registry struct {
	entries []Entry
	cap     int
}

// New builds a Registry with the given capacity, raised to MinCapacity if
// smaller.
func New(capacity int) *Registry {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Registry{entries: make([]Entry, 0, capacity), cap: capacity}
}

// Len reports the number of registered (not necessarily live) entries.
func (r *Registry) Len() int { return len(r.entries) }

// EntryAt returns the entry at position i in insertion order, used by the
// infoHelp pagination cursor (spec.md §4.6).
func (r *Registry) EntryAt(i int) (Entry, bool) {
	if i < 0 || i >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Register validates and appends an entry. id must be non-empty, no
// longer than MaxIDLen, and must not contain '|' (reserved as the
// infoHelp field separator, spec.md §4.5). Register fails if the table is
// full or validation fails; there is no deregistration.
func (r *Registry) Register(id, shortcut, desc, group string, fn HandlerFunc) bool {
	if len(r.entries) >= r.cap {
		return false
	}
	if fn == nil {
		return false
	}
	if len(id) < 1 || len(id) > MaxIDLen {
		return false
	}
	if strings.ContainsRune(id, '|') {
		return false
	}

	r.entries = append(r.entries, Entry{
		ID:       id,
		Shortcut: shortcut,
		Handler:  fn,
		Desc:     desc,
		Group:    group,
	})
	return true
}

// Lookup scans entries in insertion order and returns the first whose id
// or shortcut is a token-matching prefix of line: the candidate token must
// be followed by end-of-line, NUL, space, or tab. args is line with the
// matched token and one following separator byte removed.
func (r *Registry) Lookup(line string) (entry Entry, args string, ok bool) {
	for _, e := range r.entries {
		if !e.live() {
			continue
		}
		if a, matched := matchToken(line, e.ID); matched {
			return e, a, true
		}
		if e.Shortcut != "" {
			if a, matched := matchToken(line, e.Shortcut); matched {
				return e, a, true
			}
		}
	}
	return Entry{}, "", false
}

func matchToken(line, token string) (string, bool) {
	if !strings.HasPrefix(line, token) {
		return "", false
	}
	rest := line[len(token):]
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case 0x00, ' ', '\t':
		return rest[1:], true
	default:
		return "", false
	}
}
