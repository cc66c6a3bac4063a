package reconcile

// indexed is a patch entry together with its position in the patch array.
type indexed[P any] struct {
	Index int
	Entry P
}

// diff is the outcome of matching a patch collection against current
// membership by id.
type diff[P any] struct {
	Updates []indexed[P]
	Adds    []indexed[P]
	Removes []int64
}

// diffByID classifies each patch entry as an update when its id is a current
// member and as an add otherwise, including when it has no id. Members whose
// id does not appear in the patch are removed.
func diffByID[P any](members []int64, patch []P, idOf func(P) *int64) diff[P] {
	current := make(map[int64]bool, len(members))
	for _, id := range members {
		current[id] = true
	}

	var d diff[P]
	kept := make(map[int64]bool, len(patch))
	for i, e := range patch {
		id := idOf(e)
		if id != nil && current[*id] {
			kept[*id] = true
			d.Updates = append(d.Updates, indexed[P]{Index: i, Entry: e})
			continue
		}
		d.Adds = append(d.Adds, indexed[P]{Index: i, Entry: e})
	}

	for _, id := range members {
		if !kept[id] {
			d.Removes = append(d.Removes, id)
		}
	}
	return d
}

// appendUnique appends id unless it is already present.
func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// compact drops zero entries and duplicates while keeping order.
func compact(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = appendUnique(out, id)
		}
	}
	return out
}
