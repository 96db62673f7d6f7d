// Package challengetest has helpers for building challenge descriptors in tests.
package challengetest

import (
	"testing"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/google/uuid"
)

// PNG is a valid 1x1 grayscale PNG, base64 encoded.
const PNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAAAAAA6fptVAAAACklEQVR4nGNgAAAAAgABSK+kcQAAAABJRU5ErkJggg=="

// Default returns a Default descriptor with a fresh captcha id and a valid image.
func Default(t *testing.T) *challenge.Descriptor {
	t.Helper()

	return &challenge.Descriptor{
		Type:         challenge.TypeDefault,
		CaptchaID:    uuid.Must(uuid.NewV7()).String(),
		CaptchaImage: PNG,
	}
}

// Delegated returns a descriptor for the given third-party provider tag.
func Delegated(t *testing.T, kind challenge.Type) *challenge.Descriptor {
	t.Helper()

	return &challenge.Descriptor{
		Type:     kind,
		ClientID: "site-key-" + t.Name(),
		SubType:  "",
		Scene:    "login",
		AppKey:   "app-key",
	}
}

// None returns a descriptor that requires no challenge.
func None(t *testing.T) *challenge.Descriptor {
	t.Helper()

	return &challenge.Descriptor{Type: challenge.TypeNone}
}
