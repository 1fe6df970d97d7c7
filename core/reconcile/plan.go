// Package reconcile computes and applies the create/update/remove actions that turn a persisted
// collection of child records into a desired one.
package reconcile

// Op is the kind of write an Action performs.
type Op int

const (
	Create Op = iota + 1
	Update
	Remove
)

func (op Op) String() string {
	switch op {
	case Create:
		return "create"
	case Update:
		return "update"
	case Remove:
		return "remove"
	}
	return "unknown"
}

// Action is one write on one natural key.
// Item is the desired record (the persisted one for Remove).
// Previous is the persisted record for Update and Remove.
type Action[T any] struct {
	Op       Op
	Item     T
	Previous T
}

// Plan returns one action per key found in persisted or desired:
// Remove for keys only persisted, Create for keys only desired, Update for keys in both.
// Persisted keys come first, in persisted order, followed by the new keys in desired order.
// When desired repeats a key the last occurrence wins.
// When persisted repeats a key, the first row takes the keyed action and every
// later row with that key gets a Remove of its own.
func Plan[T any, K comparable](persisted, desired []T, keyOf func(T) K) []Action[T] {
	actions := make([]Action[T], 0, len(persisted)+len(desired))
	idx := make(map[K]int, len(persisted)+len(desired))

	for _, p := range persisted {
		k := keyOf(p)
		act := Action[T]{Op: Remove, Item: p, Previous: p}
		if _, ok := idx[k]; !ok {
			idx[k] = len(actions)
		}
		actions = append(actions, act)
	}

	for _, d := range desired {
		k := keyOf(d)
		i, ok := idx[k]
		if !ok {
			idx[k] = len(actions)
			actions = append(actions, Action[T]{Op: Create, Item: d})
			continue
		}
		if actions[i].Op == Remove {
			actions[i].Op = Update
		}
		actions[i].Item = d
	}
	return actions
}

// Count returns how many actions of each Op there are.
func Count[T any](actions []Action[T]) map[Op]int {
	counts := make(map[Op]int, 3)
	for _, a := range actions {
		counts[a.Op]++
	}
	return counts
}
