package interfaces

// ObjectID addresses one shared mutable object in the host store.
type ObjectID [32]byte

// SharedStore is the interface the consensus/ledger runtime must provide.
// The protocol core performs no locking of its own: the store totally orders
// mutations to any single object and commits each mutation atomically. An
// entry point that returns an error must leave the object unchanged.
//
// No ordering is guaranteed between operations on different objects.
type SharedStore interface {
	// Get returns the current value of a shared object, or
	// ErrObjectNotFound.
	Get(id ObjectID) (any, error)

	// Publish places a newly constructed object into shared storage.
	Publish(id ObjectID, obj any) error

	// Mutate runs fn against the object as one indivisible step. If fn
	// returns an error the mutation aborts and the stored object is
	// unchanged.
	Mutate(id ObjectID, fn func(obj any) error) error
}
