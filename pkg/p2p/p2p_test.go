package p2p

import (
	"bytes"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/log"
)

func newTestP2P() *P2P {
	return &P2P{
		log:      log.NewNop(),
		sessions: make(map[peer.ID][]byte),
	}
}

func TestWriteReadBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := []byte("ordinal handshake payload")
	if err := writeBytes(&buf, msg); err != nil {
		t.Fatalf("writeBytes: %v", err)
	}
	got, err := readBytes(&buf)
	if err != nil {
		t.Fatalf("readBytes: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("readBytes = %q, want %q", got, msg)
	}
}

func TestReadBytesRejectsMissingPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF})
	if _, err := readBytes(&buf); err == nil {
		t.Fatalf("expected error reading a length with no following payload")
	}
}

func TestStoreSessionDerivesFixedLengthKey(t *testing.T) {
	p := newTestP2P()
	id := peer.ID("peer-a")

	kpA, err := crypto.GenerateHandshakeKeyPair()
	if err != nil {
		t.Fatalf("GenerateHandshakeKeyPair: %v", err)
	}
	kpB, err := crypto.GenerateHandshakeKeyPair()
	if err != nil {
		t.Fatalf("GenerateHandshakeKeyPair: %v", err)
	}
	secret, err := kpA.SharedSecret(kpB.PublicKey)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}

	p.storeSession(id, secret)
	key := p.SessionKey(id)
	if len(key) != chacha20poly1305.KeySize {
		t.Fatalf("session key length = %d, want %d", len(key), chacha20poly1305.KeySize)
	}
}

func TestSessionKeyUnknownPeerReturnsNil(t *testing.T) {
	p := newTestP2P()
	if key := p.SessionKey(peer.ID("unknown")); key != nil {
		t.Fatalf("expected nil session key for unknown peer, got %v", key)
	}
}

func TestEncryptDecryptRoundTripWithEstablishedSession(t *testing.T) {
	p := newTestP2P()
	id := peer.ID("peer-a")

	kpA, _ := crypto.GenerateHandshakeKeyPair()
	kpB, _ := crypto.GenerateHandshakeKeyPair()
	secret, err := kpA.SharedSecret(kpB.PublicKey)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	p.storeSession(id, secret)

	plaintext := []byte("vote: precommit round 4 height 1000")
	ciphertext, err := p.EncryptForPeer(id, plaintext)
	if err != nil {
		t.Fatalf("EncryptForPeer: %v", err)
	}
	got, err := p.DecryptFromPeer(id, ciphertext)
	if err != nil {
		t.Fatalf("DecryptFromPeer: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestEncryptForPeerFailsWithoutSession(t *testing.T) {
	p := newTestP2P()
	if _, err := p.EncryptForPeer(peer.ID("no-session"), []byte("hello")); err == nil {
		t.Fatalf("expected error encrypting without an established session")
	}
}

func TestTwoSidedHandshakeDerivesMatchingSessionKeys(t *testing.T) {
	pA := newTestP2P()
	pB := newTestP2P()
	idA := peer.ID("peer-a")
	idB := peer.ID("peer-b")

	kpA, _ := crypto.GenerateHandshakeKeyPair()
	kpB, _ := crypto.GenerateHandshakeKeyPair()

	secretA, err := kpA.SharedSecret(kpB.PublicKey)
	if err != nil {
		t.Fatalf("SharedSecret A: %v", err)
	}
	secretB, err := kpB.SharedSecret(kpA.PublicKey)
	if err != nil {
		t.Fatalf("SharedSecret B: %v", err)
	}

	pA.storeSession(idB, secretA)
	pB.storeSession(idA, secretB)

	if !bytes.Equal(pA.SessionKey(idB), pB.SessionKey(idA)) {
		t.Fatalf("derived session keys diverge between the two sides of the handshake")
	}
}
