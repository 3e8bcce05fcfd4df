// Package services provides application-level orchestration services
package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/identity"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/store"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/security"
)

// browser families recognized during user-agent normalization, most
// specific first. Version numbers are excluded by design so browser updates
// never churn the fingerprint.
var uaFamilies = []string{"Edg", "OPR", "Firefox", "Chrome", "Safari"}

// legacyGuestIDPattern matches pre-backend guest IDs that carried an
// embedded mint timestamp, e.g. guest_a1b2c3d4_1699999999999.
var legacyGuestIDPattern = regexp.MustCompile(`^(guest_[0-9a-f]+)_\d+$`)

// IdentityService resolves device fingerprints and maintains the persistent
// guest identity. When durable writes fail it degrades to an in-memory
// identity for the remainder of the process lifetime rather than breaking
// the host page.
type IdentityService struct {
	store  store.DurableStore
	logger *logging.ChanneledLogger
	now    func() time.Time

	// degraded holds the in-memory identity after a storage write failure.
	degraded *identity.GuestIdentity

	// authUser, when set, takes precedence over the guest identity.
	authUser *identity.Authenticated
}

// NewIdentityService creates a new identity service.
func NewIdentityService(durable store.DurableStore, logger *logging.ChanneledLogger) *IdentityService {
	return &IdentityService{
		store:  durable,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// ResolveFingerprint derives the stable fingerprint from the environment
// snapshot. Pure function of its input: same device and browser family in,
// same hash out.
func (s *IdentityService) ResolveFingerprint(env identity.EnvironmentSnapshot) identity.Fingerprint {
	languageBase := env.Language
	if idx := strings.IndexAny(languageBase, "-_"); idx > 0 {
		languageBase = languageBase[:idx]
	}
	uaFamily := normalizeUserAgent(env.UserAgent)

	details := map[string]string{
		"screen":   fmt.Sprintf("%dx%d", env.ScreenWidth, env.ScreenHeight),
		"depth":    fmt.Sprintf("%d", env.ColorDepth),
		"timezone": env.Timezone,
		"language": languageBase,
		"platform": env.Platform,
		"browser":  uaFamily,
	}

	canonical := strings.Join([]string{
		details["screen"], details["depth"], details["timezone"],
		details["language"], details["platform"], details["browser"],
	}, "|")

	return identity.Fingerprint{
		Hash:    security.HashFingerprint(canonical),
		Details: details,
	}
}

// GetOrCreateGuestIdentity returns the stored guest identity for this
// device, minting and persisting a fresh one on first contact. The stored
// record is returned unmodified; all mutation happens in the segmenter.
func (s *IdentityService) GetOrCreateGuestIdentity(env identity.EnvironmentSnapshot) (*identity.GuestIdentity, error) {
	if s.degraded != nil {
		return s.degraded, nil
	}

	fp := s.ResolveFingerprint(env)
	recordKey := store.PrefixGuestRecord + fp.Hash

	raw, ok, err := s.store.Get(recordKey)
	if err != nil {
		s.logger.Identity().Warn("Guest record read failed, degrading to in-memory identity", "error", err.Error())
		return s.degrade(fp), nil
	}
	if ok {
		var guest identity.GuestIdentity
		if err := json.Unmarshal([]byte(raw), &guest); err != nil {
			s.logger.Identity().Warn("Guest record unreadable, reminting", "error", err.Error(), "fingerprint", fp.Hash)
		} else {
			s.normalizeLegacyID(&guest, recordKey)
			return &guest, nil
		}
	}

	guest := identity.NewGuestIdentity(fp.Hash, s.now().UTC())
	if err := s.SaveGuest(guest); err != nil {
		s.logger.Identity().Warn("Guest record write failed, degrading to in-memory identity", "error", err.Error(), "guestId", guest.GuestID)
		s.degraded = guest
		return guest, nil
	}
	if err := s.store.Set(store.KeyDeviceGuestID, guest.GuestID); err != nil {
		// Record itself persisted; the device pointer is a convenience key.
		s.logger.Identity().Warn("Device guest-ID write failed", "error", err.Error())
	}

	s.logger.Identity().Info("Guest identity created", "guestId", guest.GuestID, "fingerprint", fp.Hash)
	return guest, nil
}

// SaveGuest persists a mutated guest record. In degraded mode the record
// only lives in memory and saving is a no-op.
func (s *IdentityService) SaveGuest(guest *identity.GuestIdentity) error {
	if s.degraded != nil {
		return nil
	}
	encoded, err := json.Marshal(guest)
	if err != nil {
		return fmt.Errorf("failed to encode guest record: %w", err)
	}
	return s.store.Set(store.PrefixGuestRecord+guest.FingerprintHash, string(encoded))
}

// SetAuthenticatedUser switches the current identity to an authenticated
// user. Passing nil reverts to the guest identity.
func (s *IdentityService) SetAuthenticatedUser(user *identity.Authenticated) {
	s.authUser = user
}

// Current returns the identity events are attributed to right now: the
// authenticated user when one is known, the guest record otherwise.
func (s *IdentityService) Current(env identity.EnvironmentSnapshot) (identity.Identity, error) {
	if s.authUser != nil {
		return *s.authUser, nil
	}
	guest, err := s.GetOrCreateGuestIdentity(env)
	if err != nil {
		return nil, err
	}
	return identity.Guest{Record: guest}, nil
}

// Degraded reports whether the service has fallen back to an in-memory
// identity.
func (s *IdentityService) Degraded() bool { return s.degraded != nil }

// degrade mints an in-memory identity after a storage failure.
func (s *IdentityService) degrade(fp identity.Fingerprint) *identity.GuestIdentity {
	if s.degraded == nil {
		s.degraded = identity.NewGuestIdentity(fp.Hash, s.now().UTC())
	}
	return s.degraded
}

// normalizeLegacyID rewrites a legacy timestamped guest ID to the canonical
// persistent form, in place, on first read.
func (s *IdentityService) normalizeLegacyID(guest *identity.GuestIdentity, recordKey string) {
	matches := legacyGuestIDPattern.FindStringSubmatch(guest.GuestID)
	if matches == nil {
		return
	}
	legacy := guest.GuestID
	guest.GuestID = matches[1]
	s.logger.Identity().Info("Normalized legacy guest ID", "legacy", legacy, "canonical", guest.GuestID)

	if encoded, err := json.Marshal(guest); err == nil {
		if err := s.store.Set(recordKey, string(encoded)); err != nil {
			s.logger.Identity().Warn("Failed to persist normalized guest ID", "error", err.Error())
		}
	}
	if err := s.store.Set(store.KeyDeviceGuestID, guest.GuestID); err == nil {
		s.logger.Identity().Debug("Device guest-ID pointer updated", "guestId", guest.GuestID)
	}
}

// normalizeUserAgent reduces a full user-agent string to its browser
// family. Order matters: Chrome's UA contains "Safari", Edge's contains
// "Chrome".
func normalizeUserAgent(ua string) string {
	for _, family := range uaFamilies {
		if strings.Contains(ua, family+"/") {
			switch family {
			case "Edg":
				return "Edge"
			case "OPR":
				return "Opera"
			default:
				return family
			}
		}
	}
	if ua == "" {
		return "unknown"
	}
	// Fall back to the product token with its version stripped.
	token := strings.Fields(ua)[0]
	if idx := strings.Index(token, "/"); idx > 0 {
		token = token[:idx]
	}
	return token
}
