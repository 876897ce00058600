package diff

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/engine/rows"
	"github.com/sifan077/PowerInvite/internal/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ownFlags = rows.Flags{CanEdit: true}

func itemModel(keys []int, revs []int) rows.Model {
	m := rows.Model{Rows: make([]rows.Row, len(keys))}
	for i, k := range keys {
		m.Rows[i] = rows.Row{Kind: rows.KindItem, Collection: rows.CollectionActive, ID: fmt.Sprint(k)}
		if revs != nil {
			m.Rows[i].Rev = uint64(revs[i])
		}
	}
	return m
}

// equivalent compares identity and revision. Item positions inside their collection may differ,
// a renderer rebinds those from the new model.
func equivalent(want, got []rows.Row) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i].Identity() != got[i].Identity() || want[i].Rev != got[i].Rev {
			return false
		}
	}
	return true
}

func TestSelfDiffIsEmpty(t *testing.T) {
	st := store.New()
	st.AppendActivePage([]model.Link{{ID: "a"}, {ID: "b"}})
	st.AppendRevokedPage([]model.Link{{ID: "c"}})
	m := rows.Build(st, ownFlags)

	sc := Compute(m, m)
	assert.True(t, sc.Empty())
	assert.False(t, sc.Refresh)
}

func TestContentOnlyChangeIsRefresh(t *testing.T) {
	st := store.New()
	st.AppendActivePage([]model.Link{{ID: "a"}, {ID: "b"}})
	before := rows.Build(st, ownFlags)
	st.UpdateActive(model.Link{ID: "b", Title: "renamed"})
	after := rows.Build(st, ownFlags)

	sc := Compute(before, after)
	assert.True(t, sc.Refresh)
	assert.False(t, sc.Structural())
	assert.Equal(t, []Op{{Kind: OpUpdate, Index: 5, Count: 1}}, sc.Ops)
}

func TestRevokeActiveLink(t *testing.T) {
	st := store.New()
	st.AppendActivePage([]model.Link{{ID: "l1"}, {ID: "l2"}})
	before := rows.Build(st, ownFlags)
	require.Equal(t, 6, before.Len())

	st.MoveToRevoked("l1")
	after := rows.Build(st, ownFlags)
	require.Equal(t, 10, after.Len())

	sc := Compute(before, after)
	assert.Equal(t, []Op{
		{Kind: OpRemove, Index: 4, Count: 1},
		{Kind: OpInsert, Index: 5, Count: 5},
	}, sc.Ops)
	assert.True(t, equivalent(after.Rows, Apply(before.Rows, after.Rows, sc)))
}

func TestReplacePermanentLink(t *testing.T) {
	st := store.New()
	st.SetPermanent(model.Link{ID: "old"})
	before := rows.Build(st, ownFlags)

	st.ReplacePermanent(model.Link{ID: "new"})
	after := rows.Build(st, ownFlags)

	sc := Compute(before, after)
	assert.Equal(t, []Op{
		{Kind: OpUpdate, Index: 1, Count: 1},
		{Kind: OpInsert, Index: 4, Count: 5},
	}, sc.Ops)
	assert.Equal(t, "new", after.Rows[1].ID)
	assert.Equal(t, 6, after.IndexOf(rows.Identity{Collection: rows.CollectionRevoked, ID: "old"}))
	assert.True(t, equivalent(after.Rows, Apply(before.Rows, after.Rows, sc)))
}

func TestMoveIsRemovePlusInsert(t *testing.T) {
	before := itemModel([]int{1, 2, 3}, nil)
	after := itemModel([]int{3, 1, 2}, nil)

	sc := Compute(before, after)
	assert.Equal(t, 1, sc.Count(OpInsert))
	assert.Equal(t, 1, sc.Count(OpRemove))
	assert.True(t, equivalent(after.Rows, Apply(before.Rows, after.Rows, sc)))
}

func TestEmptyModels(t *testing.T) {
	assert.True(t, Compute(rows.Model{}, rows.Model{}).Empty())

	after := itemModel([]int{1, 2}, nil)
	sc := Compute(rows.Model{}, after)
	assert.Equal(t, []Op{{Kind: OpInsert, Index: 0, Count: 2}}, sc.Ops)

	sc = Compute(after, rows.Model{})
	assert.Equal(t, []Op{{Kind: OpRemove, Index: 0, Count: 2}}, sc.Ops)
}

func TestApplyYieldsNewModelProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)
	properties.Property("apply(diff(a, b), a) == b", prop.ForAll(
		func(a, b, revs []int) bool {
			ra := make([]int, len(a))
			rb := make([]int, len(b))
			for i := range rb {
				if len(revs) > 0 {
					rb[i] = revs[i%len(revs)]
				}
			}
			before, after := itemModel(a, ra), itemModel(b, rb)
			sc := Compute(before, after)
			return equivalent(after.Rows, Apply(before.Rows, after.Rows, sc))
		},
		gen.SliceOf(gen.IntRange(0, 12)),
		gen.SliceOf(gen.IntRange(0, 12)),
		gen.SliceOf(gen.IntRange(0, 2)),
	))
	properties.Property("minimal for pure inserts", prop.ForAll(
		func(a []int, extra int) bool {
			b := append(append([]int(nil), a...), 100+extra)
			sc := Compute(itemModel(a, nil), itemModel(b, nil))
			return sc.Count(OpInsert) == 1 && sc.Count(OpRemove) == 0
		},
		gen.SliceOf(gen.IntRange(0, 12)),
		gen.IntRange(0, 5),
	))
	properties.TestingRun(t)
}

// Every mutation the store supports, diffed against the model before it, replays into the model
// after it.
func TestStoreMutationsReplayProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("diff replays every mutation", prop.ForAll(
		func(ops []int, hints bool) bool {
			st := store.New()
			flags := rows.Flags{CanEdit: true, Hints: hints}
			seq := 0
			for _, op := range ops {
				before := rows.Build(st, flags)
				id := fmt.Sprintf("l%d", op%5)
				switch op % 8 {
				case 0:
					seq++
					st.InsertActive(model.Link{ID: fmt.Sprintf("n%d", seq)}, true)
				case 1:
					st.AppendActivePage([]model.Link{{ID: id}})
				case 2:
					st.MoveToRevoked(id)
				case 3:
					st.UpdateActive(model.Link{ID: id, Title: fmt.Sprint(op)})
				case 4:
					seq++
					st.ReplacePermanent(model.Link{ID: fmt.Sprintf("p%d", seq)})
				case 5:
					st.DeleteRevoked(id)
				case 6:
					st.ClearRevoked()
				case 7:
					st.AppendAdminPage([]model.Admin{{AdminID: id}})
				}
				after := rows.Build(st, flags)
				if !equivalent(after.Rows, Apply(before.Rows, after.Rows, Compute(before, after))) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 39)),
		gen.Bool(),
	))
	properties.TestingRun(t)
}
