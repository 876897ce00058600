// Package diff computes the edit script between two row models.
//
// Rows are matched by identity only. A matched row whose revision changed becomes an Update, so
// editing a link's attributes refreshes its row in place while inserts, removals and reorders are
// structural operations. A reordered row is reported as a Remove followed by an Insert.
package diff

import (
	"fmt"

	"github.com/sifan077/PowerInvite/internal/engine/rows"
)

// OpKind is the type of an edit operation.
type OpKind uint8

const (
	OpInsert OpKind = iota + 1
	OpRemove
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Op covers Count rows starting at Index. Indices address the list as left by the previous ops, so
// a renderer applies the ops one after another. Inserted and updated rows are read from the new
// model at the same index.
type Op struct {
	Kind  OpKind
	Index int
	Count int
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%d,%d)", o.Kind, o.Index, o.Count)
}

// Script is an ordered list of operations.
type Script struct {
	Ops []Op
	// Refresh is set when both models had the same identities: nothing moved, Ops only holds updates.
	Refresh bool
}

// Empty reports whether the script changes nothing.
func (s Script) Empty() bool {
	return len(s.Ops) == 0
}

// Structural reports whether the script inserts or removes rows.
func (s Script) Structural() bool {
	for _, op := range s.Ops {
		if op.Kind != OpUpdate {
			return true
		}
	}
	return false
}

// Count returns the number of rows touched by ops of kind k.
func (s Script) Count(k OpKind) int {
	n := 0
	for _, op := range s.Ops {
		if op.Kind == k {
			n += op.Count
		}
	}
	return n
}

// Compute returns the edit script turning old into fresh.
func Compute(old, fresh rows.Model) Script {
	a, b := old.Identities(), fresh.Identities()
	if sameIdentities(a, b) {
		sc := Script{Refresh: true}
		for i := range fresh.Rows {
			if old.Rows[i].Rev != fresh.Rows[i].Rev {
				sc.push(OpUpdate, i, 1)
			}
		}
		if sc.Empty() {
			sc.Refresh = false
		}
		return sc
	}

	var sc Script
	pos := 0
	for _, e := range myers(a, b) {
		switch e.kind {
		case editEqual:
			if old.Rows[e.old].Rev != fresh.Rows[e.new].Rev {
				sc.push(OpUpdate, pos, 1)
			}
			pos++
		case editDelete:
			sc.push(OpRemove, pos, 1)
		case editInsert:
			sc.push(OpInsert, pos, 1)
			pos++
		}
	}
	return sc
}

// push appends an op, extending the previous one when it is a contiguous run of the same kind.
func (s *Script) push(kind OpKind, index, count int) {
	if n := len(s.Ops); n > 0 {
		last := &s.Ops[n-1]
		if last.Kind == kind {
			switch kind {
			case OpRemove:
				if last.Index == index {
					last.Count += count
					return
				}
			default:
				if last.Index+last.Count == index {
					last.Count += count
					return
				}
			}
		}
	}
	s.Ops = append(s.Ops, Op{Kind: kind, Index: index, Count: count})
}

// Apply replays sc on a copy of old, taking inserted and updated rows from fresh.
func Apply(old, fresh []rows.Row, sc Script) []rows.Row {
	cur := append([]rows.Row(nil), old...)
	for _, op := range sc.Ops {
		switch op.Kind {
		case OpRemove:
			cur = append(cur[:op.Index], cur[op.Index+op.Count:]...)
		case OpInsert:
			tail := append([]rows.Row(nil), cur[op.Index:]...)
			cur = append(append(cur[:op.Index], fresh[op.Index:op.Index+op.Count]...), tail...)
		case OpUpdate:
			copy(cur[op.Index:op.Index+op.Count], fresh[op.Index:op.Index+op.Count])
		}
	}
	return cur
}

func sameIdentities(a, b []rows.Identity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
