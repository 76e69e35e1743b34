// Package identity resolves transport identifiers to stable phone numbers.
//
// WhatsApp delivers two shapes of sender identity: the classic
// <phone>@s.whatsapp.net form and the linked-device <opaque>@lid form. The
// lid payload is assigned per device and may change between sessions, so the
// only reliable way to recognize a lid sender is a learned mapping to their
// phone number.
package identity

import (
	"errors"
	"fmt"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

const (
	SuffixUser      = "@s.whatsapp.net"
	SuffixLid       = "@lid"
	suffixBroadcast = "@broadcast"
	suffixChannel   = "@newsletter"
)

// ErrNotResolvable means the identifier carries no usable phone number and no
// mapping has been learned for it. Callers must not guess.
var ErrNotResolvable = errors.New("identity: not resolvable")

// ErrInvalidIdentity marks a resolved identity that fails phone validation.
// The sender gets no reply; there is no one trustworthy to answer.
var ErrInvalidIdentity = errors.New("identity: invalid phone")

// Validate is the error-shaped form of IsValidPhone.
func Validate(raw string) error {
	if IsValidPhone(raw) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidIdentity, raw)
}

// MappingStore persists learned ephemeral-to-phone mappings. Writes are
// synchronous: when Put returns nil the mapping survives a restart.
type MappingStore interface {
	GetMapping(ephemeralID string) (phone string, ok bool, err error)
	PutMapping(ephemeralID, phone string) error
}

type Resolver struct {
	store MappingStore
	log   waLog.Logger
}

func NewResolver(store MappingStore, log waLog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidPhone reports whether raw carries a plausible phone number: after
// dropping the server suffix the digit-only remainder must be 10 to 15 digits
// long. Broadcast and newsletter addresses are never valid, whatever their
// digit count.
func IsValidPhone(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.Contains(raw, suffixBroadcast) || strings.Contains(raw, suffixChannel) {
		return false
	}
	part := raw
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		part = raw[:i]
	}
	n := len(digitsOnly(part))
	return n >= 10 && n <= 15
}

// stripDevice drops the :N device suffix linked-device senders carry in
// their user part (phone:device@s.whatsapp.net). The same person must
// resolve to the same phone from every device.
func stripDevice(user string) string {
	if i := strings.IndexByte(user, ':'); i >= 0 {
		return user[:i]
	}
	return user
}

// Resolve maps a raw transport identifier to a stable phone number.
//
// Lid forms consult the mapping store first; a learned mapping is returned
// as-is, even if it would fail IsValidPhone, because it was recorded from an
// authoritative correlation. Without a mapping the lid payload itself is
// tried as a phone number, and if that fails the identifier is not
// resolvable.
func (r *Resolver) Resolve(raw string) (string, error) {
	if raw == "" {
		return "", ErrNotResolvable
	}
	if strings.HasSuffix(raw, SuffixLid) {
		user := stripDevice(strings.TrimSuffix(raw, SuffixLid))
		phone, ok, err := r.store.GetMapping(user + SuffixLid)
		if err != nil {
			return "", fmt.Errorf("lookup mapping for %s: %w", raw, err)
		}
		if ok {
			return phone, nil
		}
		d := digitsOnly(user)
		if len(d) >= 10 && len(d) <= 15 {
			return d, nil
		}
		return "", ErrNotResolvable
	}
	if strings.HasSuffix(raw, SuffixUser) {
		return stripDevice(strings.TrimSuffix(raw, SuffixUser)), nil
	}
	if d := digitsOnly(raw); len(d) >= 10 && len(d) <= 15 {
		return d, nil
	}
	return "", ErrNotResolvable
}

// Learn records an ephemeral-to-phone mapping. It is an idempotent upsert and
// a no-op for identifiers that are not in lid form. Keys are stored without
// the device suffix so every device of the sender hits the same mapping.
func (r *Resolver) Learn(ephemeralID, phone string) error {
	if !strings.HasSuffix(ephemeralID, SuffixLid) || phone == "" {
		return nil
	}
	key := stripDevice(strings.TrimSuffix(ephemeralID, SuffixLid)) + SuffixLid
	if err := r.store.PutMapping(key, phone); err != nil {
		return fmt.Errorf("learn mapping %s: %w", key, err)
	}
	r.log.Infof("Mapped %s to %s", key, phone)
	return nil
}

// Seed preloads mappings supplied by configuration. Called once at startup,
// before any event is dispatched.
func (r *Resolver) Seed(seeds map[string]string) error {
	for eph, phone := range seeds {
		if err := r.Learn(eph, phone); err != nil {
			return err
		}
	}
	return nil
}
