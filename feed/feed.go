// Package feed implements the per-feed state machine that admits verified
// oracle results. A feed is built in two phases: constructed together with a
// single-use publication token, then published into shared storage by
// consuming that token. Once published, the only mutation path is
// SubmitResult, which composes the freshness, update-floor, presence and
// signature checks before replacing the stored result.
package feed

import (
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/result"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

// PublicationToken is the single-use capability proving a feed completed
// construction before entering shared mutable storage. Only New produces
// one; Publish consumes it exactly once. Copying the field values does not
// produce a usable token.
type PublicationToken struct {
	feedID   interfaces.FeedID
	consumed bool
}

// FeedID returns the feed this token belongs to.
func (t *PublicationToken) FeedID() interfaces.FeedID {
	return t.feedID
}

// Feed holds the latest admitted result for one oracle source, the shape it
// promises that result will have, and the earliest time an update may be
// admitted.
//
// Invariant: once a non-empty result is stored through the typed
// construction path, its runtime tag matches the declared return type.
// SubmitResult itself does not re-check the tag; readers relying on shape
// safety check the declared type against the result's tag when extracting.
type Feed struct {
	id               interfaces.FeedID
	sourceLocator    string
	scriptID         interfaces.ContentID
	extension        interfaces.ExtensionKind
	res              *result.Result
	returnType       result.ReturnType
	earliestUpdateTs uint64
	published        bool
}

// New constructs a feed in its pre-publication state, with no stored
// result, and the companion publication token. The extension kind and
// declared return type must be members of their closed enums.
func New(createdBy interfaces.Principal, sourceLocator string, scriptID interfaces.ContentID, extension interfaces.ExtensionKind, returnType result.ReturnType, earliestUpdateTs uint64) (*Feed, *PublicationToken, error) {
	if err := extension.Validate(); err != nil {
		return nil, nil, err
	}
	if err := returnType.Validate(); err != nil {
		return nil, nil, err
	}

	id := interfaces.ComputeFeedID(sourceLocator, createdBy)
	f := &Feed{
		id:               id,
		sourceLocator:    sourceLocator,
		scriptID:         scriptID,
		extension:        extension,
		returnType:       returnType,
		earliestUpdateTs: earliestUpdateTs,
	}
	return f, &PublicationToken{feedID: id}, nil
}

// Publish transitions the feed into its externally shared state, consuming
// the token. It succeeds exactly once: a token for a different feed, one
// already consumed, or any token presented after the feed is published fails
// with ErrInvalidPublicationToken and consumes nothing. The feed ID is
// derived deterministically, so constructing a second feed with the same
// locator and creator yields a fresh token carrying a matching ID; the
// published check keeps that token unusable here.
func (f *Feed) Publish(token *PublicationToken) error {
	if f.published || token == nil || token.consumed || !token.feedID.Equal(f.id) {
		return interfaces.ErrInvalidPublicationToken
	}

	token.consumed = true
	f.published = true
	return nil
}

// SubmitResult is the sole Published->Updated transition. Checks run in
// order and short-circuit on the first failure, leaving the feed unchanged:
//
//  1. payload age within the configured staleness window, else ErrStaleResult
//  2. now at or past the feed's update floor, else ErrTooEarly
//  3. payload carries a result, else ErrMissingResult
//  4. signature verifies under the identity's bound key over the canonical
//     payload bytes, else ErrInvalidSignature
//
// On success the stored result is replaced. The declared return type is not
// re-checked against the incoming result's tag here.
func (f *Feed) SubmitResult(cfg *trust.Config, identity *attestor.EnclaveIdentity, payload Payload, sig []byte, nowMs uint64) error {
	var age uint64
	if nowMs > payload.TimestampMs {
		age = nowMs - payload.TimestampMs
	}
	if age > cfg.MaxStaleness() {
		return fmt.Errorf("%w: age %dms exceeds window %dms", interfaces.ErrStaleResult, age, cfg.MaxStaleness())
	}

	if nowMs < f.earliestUpdateTs {
		return fmt.Errorf("%w: updates allowed from %d, now %d", interfaces.ErrTooEarly, f.earliestUpdateTs, nowMs)
	}

	if payload.Result == nil {
		return interfaces.ErrMissingResult
	}

	if err := VerifySignature(identity.VerifyingKey(), payload, sig); err != nil {
		return err
	}

	res := *payload.Result
	f.res = &res
	return nil
}

// ReplaceResult is a preserved variant of the update entry point that also
// requires the feed's existing stored result to be present. Feeds start
// empty, so the very first update can never pass this check.
// TODO: confirm with product whether first-update unreachability is intended
// before exposing this variant anywhere new.
func (f *Feed) ReplaceResult(cfg *trust.Config, identity *attestor.EnclaveIdentity, payload Payload, sig []byte, nowMs uint64) error {
	if f.res == nil {
		return fmt.Errorf("%w: feed holds no result to replace", interfaces.ErrMissingResult)
	}
	return f.SubmitResult(cfg, identity, payload, sig, nowMs)
}

// ID returns the feed's object locator.
func (f *Feed) ID() interfaces.FeedID {
	return f.id
}

// SourceLocator returns the opaque source the feed tracks.
func (f *Feed) SourceLocator() string {
	return f.sourceLocator
}

// ScriptID returns the content ID of the producer script.
func (f *Feed) ScriptID() interfaces.ContentID {
	return f.scriptID
}

// Extension returns the declared producer runtime.
func (f *Feed) Extension() interfaces.ExtensionKind {
	return f.extension
}

// Result returns the latest admitted result, or nil if none has been
// admitted yet.
func (f *Feed) Result() *result.Result {
	if f.res == nil {
		return nil
	}
	res := *f.res
	return &res
}

// ReturnType returns the shape the feed promises its result will match.
func (f *Feed) ReturnType() result.ReturnType {
	return f.returnType
}

// EarliestUpdateTs returns the minimum acceptable update timestamp.
func (f *Feed) EarliestUpdateTs() uint64 {
	return f.earliestUpdateTs
}

// Published reports whether the feed has entered shared storage.
func (f *Feed) Published() bool {
	return f.published
}
