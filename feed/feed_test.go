package feed

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/result"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

var testCreator = interfaces.Principal{0x01}

// boundIdentity runs the registration and verification sequence so the
// returned identity carries pub as its bound verifying key.
func boundIdentity(t *testing.T, pub interfaces.VerifyingKey) *attestor.EnclaveIdentity {
	t.Helper()

	verifier := attestor.NewStaticVerifier()
	registry := attestor.NewRegistry(testCreator, verifier)

	ms := interfaces.MeasurementSet{{0x42}}
	doc := interfaces.Attestation("test-doc")
	verifier.Add(doc, &attestor.AttestationReport{Measurements: ms, PublicKey: pub})

	identity, err := registry.Register(testCreator, ms)
	require.NoError(t, err)
	_, err = registry.Verify(identity, doc)
	require.NoError(t, err)
	return identity
}

func testFeed(t *testing.T, earliestUpdateTs uint64) (*Feed, *PublicationToken) {
	t.Helper()
	f, token, err := New(testCreator, "https://source.example/price", interfaces.ContentID{0x07}, interfaces.ExtensionJS, result.ReturnNumber, earliestUpdateTs)
	require.NoError(t, err)
	return f, token
}

func signedPayload(t *testing.T, priv ed25519.PrivateKey, ts uint64, res result.Result) (Payload, []byte) {
	t.Helper()
	p := Payload{IntentScope: IntentScopeProcessData, TimestampMs: ts, Result: &res}
	sig, err := Sign(priv, p)
	require.NoError(t, err)
	return p, sig
}

func TestNewValidatesEnums(t *testing.T) {
	_, _, err := New(testCreator, "loc", interfaces.ContentID{}, interfaces.ExtensionKind(9), result.ReturnNumber, 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidExtensionKind)

	_, _, err = New(testCreator, "loc", interfaces.ContentID{}, interfaces.ExtensionJS, result.ReturnType(9), 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidReturnType)
}

func TestNewDerivesIDFromLocatorAndCreator(t *testing.T) {
	f1, _ := testFeed(t, 0)
	f2, _ := testFeed(t, 0)
	assert.True(t, f1.ID().Equal(f2.ID()))

	f3, _, err := New(interfaces.Principal{0x02}, "https://source.example/price", interfaces.ContentID{}, interfaces.ExtensionJS, result.ReturnNumber, 0)
	require.NoError(t, err)
	assert.False(t, f1.ID().Equal(f3.ID()))
}

func TestPublishConsumesToken(t *testing.T) {
	f, token := testFeed(t, 0)
	assert.False(t, f.Published())

	require.NoError(t, f.Publish(token))
	assert.True(t, f.Published())

	// Second use of the same token fails.
	assert.ErrorIs(t, f.Publish(token), interfaces.ErrInvalidPublicationToken)
}

func TestPublishRejectsForeignToken(t *testing.T) {
	f, _ := testFeed(t, 0)
	other, otherToken, err := New(testCreator, "other-source", interfaces.ContentID{}, interfaces.ExtensionJS, result.ReturnNumber, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Publish(otherToken), interfaces.ErrInvalidPublicationToken)
	assert.False(t, f.Published())

	// The rejected token is not consumed and still publishes its own feed.
	require.NoError(t, other.Publish(otherToken))
}

func TestPublishRejectsFreshTokenAfterPublish(t *testing.T) {
	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// Constructing again with the same locator and creator derives the same
	// feed ID, so the second feed's unconsumed token matches f's ID. Publish
	// must still fail: the feed publishes exactly once.
	dup, dupToken := testFeed(t, 0)
	require.True(t, f.ID().Equal(dup.ID()))
	assert.ErrorIs(t, f.Publish(dupToken), interfaces.ErrInvalidPublicationToken)

	// The rejected token is not consumed and still publishes its own feed.
	require.NoError(t, dup.Publish(dupToken))
}

func TestPublishRejectsNilToken(t *testing.T) {
	f, _ := testFeed(t, 0)
	assert.ErrorIs(t, f.Publish(nil), interfaces.ErrInvalidPublicationToken)
}

func TestPublishRejectsTokenFieldCopy(t *testing.T) {
	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// A value copy of a consumed token carries the consumed flag with it.
	copied := *token
	assert.ErrorIs(t, f.Publish(&copied), interfaces.ErrInvalidPublicationToken)
}

func TestSubmitResultAdmitsFreshPayload(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)

	cfg := trust.NewConfig(testCreator)
	require.NoError(t, cfg.SetMaxStaleness(testCreator, 5_000))

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// age = 10000 - 6000 = 4000ms, inside the 5000ms window
	p, sig := signedPayload(t, priv, 6_000, result.MakeNumber(101))
	require.NoError(t, f.SubmitResult(cfg, identity, p, sig, 10_000))

	stored := f.Result()
	require.NotNil(t, stored)
	n, err := stored.ExtractNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(101), n)
}

func TestSubmitResultStale(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)

	cfg := trust.NewConfig(testCreator)
	require.NoError(t, cfg.SetMaxStaleness(testCreator, 5_000))

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// age = 10000 - 4000 = 6000ms, outside the 5000ms window
	p, sig := signedPayload(t, priv, 4_000, result.MakeNumber(101))
	err := f.SubmitResult(cfg, identity, p, sig, 10_000)
	assert.ErrorIs(t, err, interfaces.ErrStaleResult)
	assert.Nil(t, f.Result())
}

func TestSubmitResultExactWindowBoundary(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)

	cfg := trust.NewConfig(testCreator)
	require.NoError(t, cfg.SetMaxStaleness(testCreator, 5_000))

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// age exactly equal to the window is admitted
	p, sig := signedPayload(t, priv, 5_000, result.MakeNumber(1))
	assert.NoError(t, f.SubmitResult(cfg, identity, p, sig, 10_000))
}

func TestSubmitResultFutureTimestamp(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	// A timestamp ahead of the admission clock has age zero and passes the
	// freshness check.
	p, sig := signedPayload(t, priv, 20_000, result.MakeNumber(1))
	assert.NoError(t, f.SubmitResult(cfg, identity, p, sig, 10_000))
}

func TestSubmitResultTooEarly(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 20_000)
	require.NoError(t, f.Publish(token))

	p, sig := signedPayload(t, priv, 19_000, result.MakeNumber(1))
	err := f.SubmitResult(cfg, identity, p, sig, 19_000)
	assert.ErrorIs(t, err, interfaces.ErrTooEarly)
	assert.Nil(t, f.Result())

	// At the floor exactly, the update is admitted.
	p, sig = signedPayload(t, priv, 20_000, result.MakeNumber(1))
	assert.NoError(t, f.SubmitResult(cfg, identity, p, sig, 20_000))
}

func TestSubmitResultMissingResult(t *testing.T) {
	pub, _ := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	p := Payload{IntentScope: IntentScopeProcessData, TimestampMs: 10_000}
	err := f.SubmitResult(cfg, identity, p, []byte("sig"), 10_000)
	assert.ErrorIs(t, err, interfaces.ErrMissingResult)
}

func TestSubmitResultInvalidSignature(t *testing.T) {
	pub, _ := testKeypair(t)
	_, otherPriv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	p, sig := signedPayload(t, otherPriv, 10_000, result.MakeNumber(1))
	err := f.SubmitResult(cfg, identity, p, sig, 10_000)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSignature)
	assert.Nil(t, f.Result())
}

func TestSubmitResultCheckOrdering(t *testing.T) {
	pub, _ := testKeypair(t)
	identity := boundIdentity(t, pub)

	cfg := trust.NewConfig(testCreator)
	require.NoError(t, cfg.SetMaxStaleness(testCreator, 5_000))

	f, token := testFeed(t, 50_000)
	require.NoError(t, f.Publish(token))

	// Stale AND before the update floor AND unsigned: staleness wins.
	p := Payload{IntentScope: IntentScopeProcessData, TimestampMs: 1_000}
	err := f.SubmitResult(cfg, identity, p, nil, 30_000)
	assert.ErrorIs(t, err, interfaces.ErrStaleResult)

	// Fresh but before the floor and without a result: the floor wins.
	p = Payload{IntentScope: IntentScopeProcessData, TimestampMs: 30_000}
	err = f.SubmitResult(cfg, identity, p, nil, 30_000)
	assert.ErrorIs(t, err, interfaces.ErrTooEarly)

	// Fresh, past the floor, no result: presence wins over signature.
	p = Payload{IntentScope: IntentScopeProcessData, TimestampMs: 50_000}
	err = f.SubmitResult(cfg, identity, p, nil, 50_000)
	assert.ErrorIs(t, err, interfaces.ErrMissingResult)
}

func TestSubmitResultRepeatedUpdates(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	for i, ts := range []uint64{1_000, 2_000, 3_000} {
		p, sig := signedPayload(t, priv, ts, result.MakeNumber(uint64(i)))
		require.NoError(t, f.SubmitResult(cfg, identity, p, sig, ts))
	}

	n, err := f.Result().ExtractNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestSubmitResultDoesNotRecheckReturnType(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	// Feed declares NUMBER but a signed STRING payload is admitted; shape
	// safety is enforced by extractors, not by admission.
	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	p, sig := signedPayload(t, priv, 1_000, result.MakeString("not a number"))
	require.NoError(t, f.SubmitResult(cfg, identity, p, sig, 1_000))

	_, err := f.Result().ExtractNumber()
	assert.ErrorIs(t, err, interfaces.ErrResultTypeMismatch)
	assert.False(t, f.Result().MatchesReturnType(f.ReturnType()))
}

func TestResultAccessorCopies(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	p, sig := signedPayload(t, priv, 1_000, result.MakeNumber(5))
	require.NoError(t, f.SubmitResult(cfg, identity, p, sig, 1_000))

	first := f.Result()
	second := f.Result()
	assert.NotSame(t, first, second)
}

func TestReplaceResultRequiresExistingResult(t *testing.T) {
	pub, priv := testKeypair(t)
	identity := boundIdentity(t, pub)
	cfg := trust.NewConfig(testCreator)

	f, token := testFeed(t, 0)
	require.NoError(t, f.Publish(token))

	p, sig := signedPayload(t, priv, 1_000, result.MakeNumber(5))
	err := f.ReplaceResult(cfg, identity, p, sig, 1_000)
	assert.ErrorIs(t, err, interfaces.ErrMissingResult)

	require.NoError(t, f.SubmitResult(cfg, identity, p, sig, 1_000))

	p2, sig2 := signedPayload(t, priv, 2_000, result.MakeNumber(6))
	require.NoError(t, f.ReplaceResult(cfg, identity, p2, sig2, 2_000))

	n, err := f.Result().ExtractNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
}
