package prometheus

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sifan077/PowerInvite/internal/engine/diff"
	"github.com/stretchr/testify/assert"
)

func TestEngineMetrics(t *testing.T) {
	m := NewEngineMetrics(prometheus.NewRegistry())

	m.ObservePage("active", 20, nil)
	m.ObservePage("revoked", 0, errors.New("timeout"))
	m.ObserveMutation("revoke", nil)
	m.ObserveMutation("revoke", errors.New("denied"))
	m.ObserveUpdate(diff.Script{Ops: []diff.Op{
		{Kind: diff.OpRemove, Index: 4, Count: 1},
		{Kind: diff.OpInsert, Index: 5, Count: 3},
	}})
	m.ObserveUpdate(diff.Script{Refresh: true, Ops: []diff.Op{{Kind: diff.OpUpdate, Index: 1, Count: 1}}})
	m.ObserveUpdate(diff.Script{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("active", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("revoked", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("revoke", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("revoke", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("structural")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("refresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("empty")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ops.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("remove")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("update")))
}
