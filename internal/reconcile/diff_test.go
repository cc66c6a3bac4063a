package reconcile

import (
	"errors"
	"testing"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id   *int64
	name string
}

func idp(v int64) *int64 { return &v }

func entryID(e entry) *int64 { return e.id }

// --- diffByID ---

func TestDiffByID_UpdateAddRemove(t *testing.T) {
	patch := []entry{{id: idp(2), name: "X"}, {name: "New"}}

	d := diffByID([]int64{1, 2, 3}, patch, entryID)

	require.Len(t, d.Updates, 1)
	assert.Equal(t, 0, d.Updates[0].Index)
	assert.Equal(t, "X", d.Updates[0].Entry.name)

	require.Len(t, d.Adds, 1)
	assert.Equal(t, 1, d.Adds[0].Index)
	assert.Equal(t, "New", d.Adds[0].Entry.name)

	assert.Equal(t, []int64{1, 3}, d.Removes)
}

func TestDiffByID_UnknownIDIsAdd(t *testing.T) {
	d := diffByID([]int64{1}, []entry{{id: idp(99), name: "stray"}}, entryID)

	assert.Empty(t, d.Updates)
	require.Len(t, d.Adds, 1)
	assert.Equal(t, "stray", d.Adds[0].Entry.name)
	assert.Equal(t, []int64{1}, d.Removes)
}

func TestDiffByID_EmptyPatchRemovesAll(t *testing.T) {
	d := diffByID([]int64{4, 5}, []entry{}, entryID)

	assert.Empty(t, d.Updates)
	assert.Empty(t, d.Adds)
	assert.Equal(t, []int64{4, 5}, d.Removes)
}

func TestDiffByID_NoMembers(t *testing.T) {
	d := diffByID(nil, []entry{{name: "a"}, {name: "b"}}, entryID)

	assert.Empty(t, d.Updates)
	assert.Len(t, d.Adds, 2)
	assert.Empty(t, d.Removes)
}

func TestCompact(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, compact([]int64{3, 0, 1, 3, 2, 1}))
	assert.Equal(t, []int64{}, compact(nil))
}

func TestAppendUnique(t *testing.T) {
	ids := appendUnique(nil, 1)
	ids = appendUnique(ids, 2)
	ids = appendUnique(ids, 1)
	assert.Equal(t, []int64{1, 2}, ids)
}

// --- resolver ---

func TestResolver_CreatesOncePerKey(t *testing.T) {
	r := newResolver[string, int]()
	finds, creates := 0, 0
	find := func() (int, error) {
		finds++
		return 0, store.ErrNotFound
	}
	create := func() (int, error) {
		creates++
		return 42, nil
	}

	v1, err := r.resolve("guard", find, create)
	require.NoError(t, err)
	v2, err := r.resolve("guard", find, create)
	require.NoError(t, err)

	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	assert.Equal(t, 1, finds)
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, r.created)
}

func TestResolver_FoundIsNotCreated(t *testing.T) {
	r := newResolver[string, int]()

	v, err := r.resolve("mount",
		func() (int, error) { return 7, nil },
		func() (int, error) { t.Fatal("create must not be called"); return 0, nil })

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 0, r.created)
}

func TestResolver_FindErrorPropagates(t *testing.T) {
	r := newResolver[string, int]()
	boom := errors.New("connection reset")

	_, err := r.resolve("back",
		func() (int, error) { return 0, boom },
		func() (int, error) { t.Fatal("create must not be called"); return 0, nil })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.seen)
}

func TestResolver_CreateErrorNotCached(t *testing.T) {
	r := newResolver[string, int]()
	calls := 0
	create := func() (int, error) {
		calls++
		if calls == 1 {
			return 0, store.ErrDuplicateKey
		}
		return 9, nil
	}
	notFound := func() (int, error) { return 0, store.ErrNotFound }

	_, err := r.resolve("k", notFound, create)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	v, err := r.resolve("k", notFound, create)
	require.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.Equal(t, 1, r.created)
}

func TestResolver_Put(t *testing.T) {
	r := newResolver[string, int]()
	r.put("renamed", 5)

	v, err := r.resolve("renamed",
		func() (int, error) { t.Fatal("find must not be called"); return 0, nil },
		func() (int, error) { t.Fatal("create must not be called"); return 0, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}
