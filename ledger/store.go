// Package ledger provides the reference in-process implementation of the
// host shared-state store. A real deployment replaces it with the consensus
// runtime; it exists so the protocol core and its drivers have the
// serialization and atomicity the core assumes: at most one in-flight
// mutation per object, commit-or-abort with no partial state.
package ledger

import (
	"fmt"
	"sync"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/feed"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

// Store is an in-memory SharedStore. Objects are stored untyped; callers
// recover types at the boundary, which is exactly the storage environment
// the result algebra's extractors guard against.
type Store struct {
	mu      sync.RWMutex
	objects map[interfaces.ObjectID]*object
}

type object struct {
	mu  sync.Mutex
	val any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{objects: make(map[interfaces.ObjectID]*object)}
}

// Get returns the current value of a shared object.
func (s *Store) Get(id interfaces.ObjectID) (any, error) {
	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %x", interfaces.ErrObjectNotFound, id[:8])
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.val, nil
}

// Publish places a newly constructed object into shared storage. Publishing
// over an existing object is rejected.
func (s *Store) Publish(id interfaces.ObjectID, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[id]; exists {
		return fmt.Errorf("object %x already published", id[:8])
	}
	s.objects[id] = &object{val: val}
	return nil
}

// Mutate runs fn against the object under its per-object lock, totally
// ordering mutations to one object. fn returning an error aborts the step;
// the entry points it wraps only mutate on success, so an abort leaves the
// object unchanged.
func (s *Store) Mutate(id interfaces.ObjectID, fn func(obj any) error) error {
	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %x", interfaces.ErrObjectNotFound, id[:8])
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	return fn(obj.val)
}

// PublishFeed consumes the publication token and moves the feed into shared
// storage as one step.
func PublishFeed(s interfaces.SharedStore, f *feed.Feed, token *feed.PublicationToken) error {
	if err := f.Publish(token); err != nil {
		return err
	}
	return s.Publish(interfaces.ObjectID(f.ID()), f)
}

// GetFeed fetches a published feed, recovering its type from the untyped
// store.
func GetFeed(s interfaces.SharedStore, id interfaces.FeedID) (*feed.Feed, error) {
	val, err := s.Get(interfaces.ObjectID(id))
	if err != nil {
		return nil, err
	}

	f, ok := val.(*feed.Feed)
	if !ok {
		return nil, fmt.Errorf("object %x is not an oracle feed", id[:8])
	}
	return f, nil
}

// SubmitResult is the host-side update entry point: it resolves the feed
// object and runs the verified update as one serialized mutation.
func SubmitResult(s interfaces.SharedStore, cfg *trust.Config, identity *attestor.EnclaveIdentity, id interfaces.FeedID, payload feed.Payload, sig []byte, nowMs uint64) error {
	return s.Mutate(interfaces.ObjectID(id), func(obj any) error {
		f, ok := obj.(*feed.Feed)
		if !ok {
			return fmt.Errorf("object %x is not an oracle feed", id[:8])
		}
		return f.SubmitResult(cfg, identity, payload, sig, nowMs)
	})
}
