// Package issuer manages the issuer's announcement signing identity: an
// Ed25519 keypair used to sign outbound publication announcements.
//
// The identity authenticates announcements to external log endpoints only.
// Certificate signatures themselves stay keyless hash digests; introducing a
// key there would change the system's trust model.
package issuer

import (
	"crypto/ed25519"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/certforge/certforge/internal/util"
)

// Identity holds the issuer keypair. The private seed lives in a memguard
// enclave and is only materialized for the duration of a signing call.
type Identity struct {
	pub  ed25519.PublicKey
	seed *memguard.Enclave
}

// NewIdentity generates a fresh Ed25519 issuer identity.
func NewIdentity() (*Identity, error) {
	seed, err := util.RandomBytes(ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("generating issuer seed: %w", err)
	}
	return fromSeed(seed), nil
}

// fromSeed builds an Identity and wipes the provided seed slice.
func fromSeed(seed []byte) *Identity {
	priv := ed25519.NewKeyFromSeed(seed)
	id := &Identity{
		pub:  priv.Public().(ed25519.PublicKey),
		seed: memguard.NewEnclave(util.CopyBytes(seed)),
	}
	util.WipeBytes(seed)
	return id
}

// Sign signs data with the issuer private key.
func (id *Identity) Sign(data []byte) ([]byte, error) {
	buf, err := id.seed.Open()
	if err != nil {
		return nil, fmt.Errorf("opening issuer seed enclave: %w", err)
	}
	defer buf.Destroy()
	priv := ed25519.NewKeyFromSeed(buf.Bytes())
	return ed25519.Sign(priv, data), nil
}

// PublicKey returns the issuer public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.pub
}

// PublicKeyHex returns the issuer public key as lowercase hex, the form
// embedded in announcements and publication references.
func (id *Identity) PublicKeyHex() string {
	return util.HexEncode(id.pub)
}

// VerifyAnnouncementSignature checks an announcement signature against a
// hex-encoded issuer public key.
func VerifyAnnouncementSignature(publicKeyHex string, data, sig []byte) (bool, error) {
	pub, err := util.HexDecode(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("decoding issuer public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("issuer public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}
