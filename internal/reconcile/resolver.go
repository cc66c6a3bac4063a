package reconcile

import (
	"errors"

	"github.com/kiranshivaraju/rollreview/internal/store"
)

// resolver is a get-or-create cache scoped to one reconciliation pass. A key
// is looked up in the store at most once and created at most once, so repeated
// references inside a pass always yield the same row.
type resolver[K comparable, V any] struct {
	seen    map[K]V
	created int
}

func newResolver[K comparable, V any]() *resolver[K, V] {
	return &resolver[K, V]{seen: make(map[K]V)}
}

// resolve returns the value cached for key. Otherwise it calls find, and when
// find reports store.ErrNotFound it calls create.
func (r *resolver[K, V]) resolve(key K, find, create func() (V, error)) (V, error) {
	if v, ok := r.seen[key]; ok {
		return v, nil
	}

	v, err := find()
	if errors.Is(err, store.ErrNotFound) {
		v, err = create()
		if err == nil {
			r.created++
		}
	}
	if err != nil {
		var zero V
		return zero, err
	}

	r.seen[key] = v
	return v, nil
}

// put records v under key, for rows whose natural key changed in place.
func (r *resolver[K, V]) put(key K, v V) {
	r.seen[key] = v
}
