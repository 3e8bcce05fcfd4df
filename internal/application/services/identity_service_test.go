package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFingerprintStableAcrossBrowserVersions(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	env := testEnv()
	first := svc.ResolveFingerprint(env)

	env.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) Chrome/121.0.6167.85 Safari/537.36"
	second := svc.ResolveFingerprint(env)

	assert.Equal(t, first.Hash, second.Hash, "a browser update must not change the fingerprint")
	assert.Equal(t, "Chrome", second.Details["browser"])
	assert.Len(t, first.Hash, 16)
}

func TestResolveFingerprintLanguageVariantsCollapse(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	env := testEnv()
	env.Language = "en-US"
	first := svc.ResolveFingerprint(env)

	env.Language = "en_GB"
	second := svc.ResolveFingerprint(env)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, "en", second.Details["language"])
}

func TestResolveFingerprintDistinguishesBrowserFamilies(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	env := testEnv()
	chrome := svc.ResolveFingerprint(env)

	env.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	firefox := svc.ResolveFingerprint(env)

	assert.NotEqual(t, chrome.Hash, firefox.Hash)
	assert.Equal(t, "Firefox", firefox.Details["browser"])
}

func TestUserAgentFamilyPrecedence(t *testing.T) {
	// Edge and Opera UAs embed "Chrome", Chrome's embeds "Safari".
	assert.Equal(t, "Edge", normalizeUserAgent("Mozilla/5.0 Chrome/120.0 Safari/537.36 Edg/120.0"))
	assert.Equal(t, "Opera", normalizeUserAgent("Mozilla/5.0 Chrome/120.0 Safari/537.36 OPR/106.0"))
	assert.Equal(t, "Chrome", normalizeUserAgent("Mozilla/5.0 Chrome/120.0 Safari/537.36"))
	assert.Equal(t, "Safari", normalizeUserAgent("Mozilla/5.0 Version/17.1 Safari/605.1.15"))
	assert.Equal(t, "unknown", normalizeUserAgent(""))
}

func TestGetOrCreateGuestIdentityIsIdempotent(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	first, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err)
	second, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err)

	assert.Equal(t, first.GuestID, second.GuestID)
	assert.Equal(t, 1, second.VisitCount)
	assert.Equal(t, identity.GuestIDPrefix+first.FingerprintHash, first.GuestID)
}

func TestGuestIdentitySurvivesEnvironmentDrift(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	first, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err)

	// Same device, newer browser build.
	env := testEnv()
	env.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) Chrome/125.0.0.0 Safari/537.36"
	second, err := svc.GetOrCreateGuestIdentity(env)
	require.NoError(t, err)

	assert.Equal(t, first.GuestID, second.GuestID)
}

func TestLegacyGuestIDNormalizedOnRead(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := NewIdentityService(mem, newTestLogger(t))

	hash := svc.ResolveFingerprint(testEnv()).Hash
	legacy := identity.NewGuestIdentity(hash, time.Now().UTC())
	legacy.GuestID = "guest_" + hash + "_1699999999999"
	encoded, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, mem.Set(store.PrefixGuestRecord+hash, string(encoded)))

	guest, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err)
	assert.Equal(t, "guest_"+hash, guest.GuestID)

	// The rewrite is persisted, not just in-memory.
	raw, ok, err := mem.Get(store.PrefixGuestRecord + hash)
	require.NoError(t, err)
	require.True(t, ok)
	var stored identity.GuestIdentity
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "guest_"+hash, stored.GuestID)
}

func TestIdentityDegradesWhenStorageFails(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.FailWrites = true
	svc := NewIdentityService(mem, newTestLogger(t))

	first, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err, "storage failure must not surface to the host page")
	assert.True(t, svc.Degraded())

	second, err := svc.GetOrCreateGuestIdentity(testEnv())
	require.NoError(t, err)
	assert.Same(t, first, second, "degraded identity is stable for the process lifetime")

	assert.NoError(t, svc.SaveGuest(first), "saving in degraded mode is a silent no-op")
}

func TestCurrentPrefersAuthenticatedUser(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryStore(), newTestLogger(t))

	current, err := svc.Current(testEnv())
	require.NoError(t, err)
	guest, ok := current.(identity.Guest)
	require.True(t, ok)
	assert.Equal(t, guest.Record.GuestID, current.Key())

	svc.SetAuthenticatedUser(&identity.Authenticated{UserID: "user-42"})
	current, err = svc.Current(testEnv())
	require.NoError(t, err)
	assert.Equal(t, "user-42", current.Key())

	svc.SetAuthenticatedUser(nil)
	current, err = svc.Current(testEnv())
	require.NoError(t, err)
	assert.IsType(t, identity.Guest{}, current)
}
