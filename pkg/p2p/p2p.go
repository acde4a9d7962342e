// Package p2p is the gossip transport (§9, §10): a libp2p host with two
// pubsub topics (consensus messages, transactions), Kademlia peer discovery,
// and a per-peer session handshake that derives a session key independent of
// consensus signing. EncryptForPeer/DecryptFromPeer seal and open payloads
// under that key; gossip on the pubsub topics is published unencrypted.
package p2p

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/log"
)

const (
	handshakeProtocol = protocol.ID("/ordinal/handshake/1.0")

	// TopicConsensus carries ProposeBlock/CastVote/CommitBlock gossip.
	TopicConsensus = "ordinal/consensus/v1"
	// TopicTransactions carries transactions destined for peers' mempools.
	TopicTransactions = "ordinal/transactions/v1"
)

// Config configures the P2P host.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
}

// P2P wraps a libp2p host, its pubsub router, DHT-based discovery, and the
// per-peer X25519 session key table.
type P2P struct {
	ctx    context.Context
	log    log.Logger
	Host   host.Host
	DHT    *dht.IpfsDHT
	PubSub *pubsub.PubSub

	sessionMu sync.RWMutex
	sessions  map[peer.ID][]byte
}

// New creates a libp2p host listening on cfg.ListenAddrs, joins the gossip
// network, and dials cfg.BootstrapPeers.
func New(ctx context.Context, cfg Config, logger log.Logger) (*P2P, error) {
	var opts []libp2p.Option
	for _, addr := range cfg.ListenAddrs {
		opts = append(opts, libp2p.ListenAddrStrings(addr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("p2p: libp2p new: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("p2p: pubsub: %w", err)
	}
	dhtNode, err := dht.New(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("p2p: dht: %w", err)
	}
	p := &P2P{
		ctx:      ctx,
		log:      logger,
		Host:     h,
		DHT:      dhtNode,
		PubSub:   ps,
		sessions: make(map[peer.ID][]byte),
	}
	h.SetStreamHandler(handshakeProtocol, p.handleHandshakeStream)

	for _, addr := range cfg.BootstrapPeers {
		if err := p.connectPeer(addr); err != nil {
			return nil, err
		}
	}
	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, conn network.Conn) {
			go p.initiateHandshake(conn.RemotePeer())
		},
	})
	return p, nil
}

// Close shuts down the DHT and host.
func (p *P2P) Close() error {
	if p.DHT != nil {
		if err := p.DHT.Close(); err != nil {
			return err
		}
	}
	return p.Host.Close()
}

func (p *P2P) connectPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("p2p: invalid peer addr: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return fmt.Errorf("p2p: addr info: %w", err)
	}
	return p.Host.Connect(p.ctx, *info)
}

// Topic joins (or returns the already-joined) pubsub topic named name.
func (p *P2P) Topic(name string) (*pubsub.Topic, error) {
	return p.PubSub.Join(name)
}

// SessionKey returns the derived session key for peer id, or nil if no
// handshake has completed yet.
func (p *P2P) SessionKey(id peer.ID) []byte {
	p.sessionMu.RLock()
	defer p.sessionMu.RUnlock()
	return append([]byte(nil), p.sessions[id]...)
}

// EncryptForPeer seals plaintext under id's session key, prefixing the nonce.
func (p *P2P) EncryptForPeer(id peer.ID, plaintext []byte) ([]byte, error) {
	key := p.SessionKey(id)
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("p2p: no session key for peer %s", id)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// DecryptFromPeer opens a ciphertext produced by EncryptForPeer.
func (p *P2P) DecryptFromPeer(id peer.ID, ciphertext []byte) ([]byte, error) {
	key := p.SessionKey(id)
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("p2p: no session key for peer %s", id)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("p2p: ciphertext too short")
	}
	nonce := ciphertext[:aead.NonceSize()]
	ct := ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

// initiateHandshake runs the dialer side of the X25519 key exchange against
// a newly connected peer: send our ephemeral public key, read theirs, derive
// the shared session key.
func (p *P2P) initiateHandshake(peerID peer.ID) {
	stream, err := p.Host.NewStream(p.ctx, peerID, handshakeProtocol)
	if err != nil {
		p.log.Debug("handshake dial failed", "peer", peerID, "err", err)
		return
	}
	defer stream.Close()

	kp, err := crypto.GenerateHandshakeKeyPair()
	if err != nil {
		p.log.Error("handshake keypair generation failed", "err", err)
		return
	}
	if err := writeBytes(stream, kp.PublicKey); err != nil {
		return
	}
	peerPub, err := readBytes(stream)
	if err != nil {
		return
	}
	secret, err := kp.SharedSecret(peerPub)
	if err != nil {
		p.log.Error("handshake shared secret derivation failed", "peer", peerID, "err", err)
		return
	}
	p.storeSession(peerID, secret)
}

// handleHandshakeStream runs the listener side: read the dialer's ephemeral
// public key, reply with ours, derive the same shared session key.
func (p *P2P) handleHandshakeStream(stream network.Stream) {
	defer stream.Close()
	peerPub, err := readBytes(stream)
	if err != nil {
		return
	}
	kp, err := crypto.GenerateHandshakeKeyPair()
	if err != nil {
		p.log.Error("handshake keypair generation failed", "err", err)
		return
	}
	if err := writeBytes(stream, kp.PublicKey); err != nil {
		return
	}
	secret, err := kp.SharedSecret(peerPub)
	if err != nil {
		p.log.Error("handshake shared secret derivation failed", "err", err)
		return
	}
	p.storeSession(stream.Conn().RemotePeer(), secret)
}

func (p *P2P) storeSession(peerID peer.ID, secret []byte) {
	h := hkdf.New(sha256.New, secret, nil, []byte("ordinal-handshake"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		p.log.Error("session key derivation failed", "peer", peerID, "err", err)
		return
	}
	p.sessionMu.Lock()
	p.sessions[peerID] = key
	p.sessionMu.Unlock()
}

func writeBytes(w io.Writer, b []byte) error {
	if len(b) > 1<<20 {
		return fmt.Errorf("p2p: message too large")
	}
	lenBuf := []byte{byte(len(b) >> 8), byte(len(b))}
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	size := int(lenBuf[0])<<8 | int(lenBuf[1])
	if size <= 0 || size > 1<<20 {
		return nil, fmt.Errorf("p2p: invalid size")
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
