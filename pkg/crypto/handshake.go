package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// HandshakeKeyPair is an ephemeral X25519 keypair used to establish a per-peer
// transport session. This replaces the teacher's Kyber768 KEM, whose cgo binding
// referenced a vendored C reference implementation that was never actually present
// in the repository (see DESIGN.md) and so could never have linked.
type HandshakeKeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GenerateHandshakeKeyPair creates a new ephemeral X25519 keypair.
func GenerateHandshakeKeyPair() (*HandshakeKeyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("handshake: generate private scalar: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("handshake: derive public key: %w", err)
	}
	return &HandshakeKeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// SharedSecret computes the X25519 shared secret for a peer's public key.
func (kp *HandshakeKeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != curve25519.PointSize {
		return nil, fmt.Errorf("handshake: invalid peer public key length %d", len(peerPublic))
	}
	return curve25519.X25519(kp.PrivateKey, peerPublic)
}
