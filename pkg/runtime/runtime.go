// Package runtime wires the BFT core, validator manager, account state,
// mempool, chain store, tiered storage, and p2p gossip transport into a
// single running node, the way pkg/node does for the teacher chain: one
// goroutine owns every mutation of consensus state, dispatches the BFT
// core's Output slice, and exposes a Prometheus /metrics endpoint alongside
// the gossip transport.
package runtime

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ordinalchain/ordinal/pkg/account"
	"github.com/ordinalchain/ordinal/pkg/bft"
	"github.com/ordinalchain/ordinal/pkg/chainstore"
	"github.com/ordinalchain/ordinal/pkg/config"
	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/genesis"
	"github.com/ordinalchain/ordinal/pkg/log"
	"github.com/ordinalchain/ordinal/pkg/mempool"
	"github.com/ordinalchain/ordinal/pkg/p2p"
	"github.com/ordinalchain/ordinal/pkg/storage"
	"github.com/ordinalchain/ordinal/pkg/types"
	"github.com/ordinalchain/ordinal/pkg/validator"
)

// Node is the running instance: every field below is written to only from
// the single goroutine run by Start, except for Stop's shutdown of the HTTP
// and p2p listeners.
type Node struct {
	cfg     *config.NodeConfig
	log     log.Logger
	genesis *genesis.Genesis

	state      *account.StateDB
	validators *validator.Manager
	mempool    *mempool.Mempool
	storage    *storage.TieredStorage
	chain      *chainstore.Store
	p2p        *p2p.P2P
	core       *bft.Core
	timeouts   bft.TimeoutConfig

	signerPriv ed25519.PrivateKey
	signerPub  types.PublicKey
	isSigner   bool

	httpSrv *http.Server

	timers map[bft.RoundStep]*time.Timer
	events chan event

	metrics metrics
}

type metrics struct {
	blocksCommitted prometheus.Counter
	votesCast       prometheus.Counter
	height          prometheus.Gauge
}

// event is anything that mutates the BFT core: a network message, a fired
// timeout, or the local proposer's block build completing.
type event struct {
	proposal  *types.Proposal
	prevote   *types.Vote
	precommit *types.Vote
	timeout   *timeoutEvent
}

type timeoutEvent struct {
	step  bft.RoundStep
	round types.Round
}

// New constructs a Node from configuration and an already-loaded genesis. It
// opens the chain store and tiered storage at cfg.HomeDir but does not yet
// start the event loop, the p2p host, or the metrics server — call Start for
// that.
func New(cfg *config.NodeConfig, gen *genesis.Genesis, logger log.Logger, reg *prometheus.Registry) (*Node, error) {
	chain, err := chainstore.Open(cfg.HomeDir)
	if err != nil {
		return nil, fmt.Errorf("runtime: open chain store: %w", err)
	}
	tiered, err := storage.New(storage.Config{
		HotCapacity: cfg.Storage.HotCapacity,
		WarmDir:     filepath.Join(cfg.HomeDir, cfg.Storage.WarmDir),
		ColdDir:     filepath.Join(cfg.HomeDir, cfg.Storage.ColdDir),
	}, reg)
	if err != nil {
		chain.Close()
		return nil, fmt.Errorf("runtime: open tiered storage: %w", err)
	}

	n := &Node{
		cfg:      cfg,
		log:      logger,
		genesis:  gen,
		state:    account.NewStateDB(),
		chain:    chain,
		storage:  tiered,
		timeouts: bft.TimeoutConfig{ProposeMs: cfg.Consensus.TimeoutProposeMs, PrevoteMs: cfg.Consensus.TimeoutPrevoteMs, PrecommitMs: cfg.Consensus.TimeoutPrecommitMs, IncrementMs: cfg.Consensus.TimeoutIncrementMs},
		timers:   make(map[bft.RoundStep]*time.Timer),
		events:   make(chan event, 256),
		metrics: metrics{
			blocksCommitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "ordinal_blocks_committed_total", Help: "Total blocks committed by this node."}),
			votesCast:       promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "ordinal_votes_cast_total", Help: "Total votes cast by this node's validator."}),
			height:          promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "ordinal_consensus_height", Help: "Current consensus height."}),
		},
	}

	n.validators = validator.NewManager(validator.Config{
		ActiveSetCap: int(cfg.Consensus.MaxValidators),
		EpochLength:  cfg.Consensus.EpochLength,
		MinStake:     cfg.Consensus.MinStake,
	})
	if err := n.applyGenesis(); err != nil {
		chain.Close()
		return nil, err
	}
	n.mempool = mempool.New(n.state)
	return n, nil
}

func (n *Node) applyGenesis() error {
	for _, acc := range n.genesis.Accounts {
		pub, err := decodeGenesisPubKey(acc.PubKey)
		if err != nil {
			return fmt.Errorf("runtime: genesis account: %w", err)
		}
		n.state.SetAccount(pub, types.AccountState{Balance: acc.Balance})
	}
	for _, v := range n.genesis.Validators {
		pub, err := decodeGenesisPubKey(v.PubKey)
		if err != nil {
			return fmt.Errorf("runtime: genesis validator: %w", err)
		}
		if err := n.validators.RegisterValidator(pub, v.InitialStake, validator.LockPermanent, v.CommissionRateBps, 0); err != nil {
			return fmt.Errorf("runtime: register genesis validator: %w", err)
		}
	}
	n.validators.RotateEpoch()
	return nil
}

func decodeGenesisPubKey(hexStr string) (types.PublicKey, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return types.PublicKey{}, err
	}
	return types.PublicKeyFromBytes(raw)
}

// EnableValidator loads a validator signing key and arms this node to cast
// votes and propose blocks when it is selected. Must be called before Start.
func (n *Node) EnableValidator(priv ed25519.PrivateKey) error {
	pub, err := types.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return fmt.Errorf("runtime: validator public key: %w", err)
	}
	n.signerPriv = priv
	n.signerPub = pub
	n.isSigner = true
	return nil
}

// Start opens the p2p host, the metrics/health HTTP server, resumes from the
// last finalized height in the chain store (or genesis height 1 if none was
// ever committed), and begins the single-goroutine consensus event loop. It
// returns once the node's background goroutines are launched; it does not
// block.
func (n *Node) Start(ctx context.Context, reg *prometheus.Registry) error {
	p2pNode, err := p2p.New(ctx, p2p.Config{ListenAddrs: []string{n.cfg.P2P.ListenAddr}, BootstrapPeers: n.cfg.P2P.BootstrapPeers}, n.log)
	if err != nil {
		return fmt.Errorf("runtime: start p2p: %w", err)
	}
	n.p2p = p2pNode

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	n.httpSrv = &http.Server{Addr: fmt.Sprintf("%s:%d", n.cfg.RPC.Addr, n.cfg.RPC.Port), Handler: mux}
	go func() {
		if err := n.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error("http server stopped", "err", err)
		}
	}()

	height, err := n.resumeHeight()
	if err != nil {
		return fmt.Errorf("runtime: resume height: %w", err)
	}
	active := n.validators.ActiveSet()
	n.core = bft.NewCore(height, active, n.signerPub, n.isSigner, n.timeouts)

	go n.run(ctx)
	n.dispatch(n.core.StartRound(0))
	return nil
}

func (n *Node) resumeHeight() (types.Height, error) {
	cs, err := n.chain.GetConsensusState()
	if err != nil {
		return 0, err
	}
	if cs.LastFinalized.IsZero() {
		return 1, nil
	}
	return cs.Height + 1, nil
}

// Stop shuts down the HTTP server and p2p host and closes the chain store.
// It does not attempt to flush in-flight consensus state: a restart resumes
// from the last commit recorded in the chain store.
func (n *Node) Stop(ctx context.Context) error {
	if n.httpSrv != nil {
		_ = n.httpSrv.Shutdown(ctx)
	}
	if n.p2p != nil {
		_ = n.p2p.Close()
	}
	for _, t := range n.timers {
		t.Stop()
	}
	return n.chain.Close()
}

// run is the single goroutine that ever touches n.core, n.state, n.mempool,
// or n.validators after Start returns: every event enters here serialized,
// so no caller needs its own lock on consensus state.
func (n *Node) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.events:
			n.handle(ev)
		}
	}
}

func (n *Node) handle(ev event) {
	switch {
	case ev.proposal != nil:
		n.dispatch(n.core.OnProposal(*ev.proposal))
	case ev.prevote != nil:
		n.dispatch(n.core.OnPrevote(*ev.prevote))
	case ev.precommit != nil:
		n.dispatch(n.core.OnPrecommit(*ev.precommit))
	case ev.timeout != nil:
		n.dispatch(n.core.OnTimeout(ev.timeout.step, ev.timeout.round))
	}
}

// dispatch carries out every Output the core just emitted: signing and
// broadcasting votes, arming timers, building proposals, and applying
// committed blocks to account state and the chain store. No lock is held
// across any of these — consensus state is only ever touched from run's
// single goroutine, so none is needed here either.
func (n *Node) dispatch(outputs []bft.Output) {
	for _, out := range outputs {
		switch out.Kind {
		case bft.OutputCastVote:
			n.castVote(out)
		case bft.OutputScheduleTimeout:
			n.scheduleTimeout(out)
		case bft.OutputProposeBlock:
			n.proposeBlock(out)
		case bft.OutputCommitBlock:
			n.commitBlock(out)
		}
	}
}

func (n *Node) castVote(out bft.Output) {
	if !n.isSigner {
		return
	}
	vote, err := bft.SignVote(n.signerPriv, n.signerPub, out.VoteType, out.Height, out.Round, out.BlockHash, out.HasBlock)
	if err != nil {
		n.log.Error("sign vote failed", "err", err)
		return
	}
	n.metrics.votesCast.Inc()
	n.broadcastVote(vote)
	switch out.VoteType {
	case types.VoteTypePrevote:
		n.dispatch(n.core.OnPrevote(vote))
	case types.VoteTypePrecommit:
		n.dispatch(n.core.OnPrecommit(vote))
	}
}

func (n *Node) broadcastVote(vote types.Vote) {
	if n.p2p == nil {
		return
	}
	raw, err := encoding.MarshalVote(&vote)
	if err != nil {
		n.log.Error("marshal vote failed", "err", err)
		return
	}
	topic, err := n.p2p.Topic(p2p.TopicConsensus)
	if err != nil {
		n.log.Error("join consensus topic failed", "err", err)
		return
	}
	if err := topic.Publish(context.Background(), raw); err != nil {
		n.log.Error("publish vote failed", "err", err)
	}
}

func (n *Node) scheduleTimeout(out bft.Output) {
	if t, ok := n.timers[out.TimeoutStep]; ok {
		t.Stop()
	}
	duration := time.Duration(n.timeouts.For(out.TimeoutStep, out.Round)) * time.Millisecond
	round, step := out.Round, out.TimeoutStep
	n.timers[step] = time.AfterFunc(duration, func() {
		n.events <- event{timeout: &timeoutEvent{step: step, round: round}}
	})
}

func (n *Node) proposeBlock(out bft.Output) {
	if !n.isSigner {
		return
	}
	txs, err := n.mempool.SelectForBlock(1000)
	if err != nil {
		n.log.Error("select transactions for block failed", "err", err)
		return
	}
	body := make([]types.Transaction, len(txs))
	for i, tx := range txs {
		body[i] = *tx
	}
	txRoot, err := encoding.TxMerkleRoot(body)
	if err != nil {
		n.log.Error("compute tx merkle root failed", "err", err)
		return
	}
	parentHash, err := n.lastBlockHash(out.Height)
	if err != nil {
		n.log.Error("resolve parent hash failed", "err", err)
		return
	}
	header := types.BlockHeader{
		Height:       out.Height,
		Timestamp:    time.Now().Unix(),
		ParentHash:   parentHash,
		Proposer:     n.signerPub,
		StateRoot:    n.state.ComputeStateRoot(),
		TxMerkleRoot: txRoot,
	}
	block := types.Block{Header: header, Transactions: body}
	blockHash, err := encoding.HashBlock(&block)
	if err != nil {
		n.log.Error("hash block failed", "err", err)
		return
	}
	proposal, err := bft.SignProposal(n.signerPriv, n.signerPub, out.Height, out.Round, &block, blockHash, 0, false)
	if err != nil {
		n.log.Error("sign proposal failed", "err", err)
		return
	}
	n.broadcastProposal(proposal)
	n.dispatch(n.core.OnProposal(proposal))
}

func (n *Node) lastBlockHash(height types.Height) (types.Hash, error) {
	if height <= 1 {
		return types.Hash{}, nil
	}
	block, err := n.chain.GetBlockByHeight(height - 1)
	if err != nil {
		return types.Hash{}, err
	}
	if block == nil {
		return types.Hash{}, nil
	}
	return encoding.HashBlock(block)
}

func (n *Node) broadcastProposal(p types.Proposal) {
	if n.p2p == nil {
		return
	}
	raw, err := encoding.MarshalProposal(&p)
	if err != nil {
		n.log.Error("marshal proposal failed", "err", err)
		return
	}
	topic, err := n.p2p.Topic(p2p.TopicConsensus)
	if err != nil {
		n.log.Error("join consensus topic failed", "err", err)
		return
	}
	if err := topic.Publish(context.Background(), raw); err != nil {
		n.log.Error("publish proposal failed", "err", err)
	}
}

// commitBlock applies a finalized block to account state, persists it and
// the advanced validator set to the chain store, trims confirmed
// transactions out of the mempool, and advances the BFT core to the next
// height. This is the one place the runtime's documented lock order
// (state -> mempool -> chain store -> validator set) applies in full: each
// step below only begins once the previous one has returned, and none of it
// spans a channel receive or network call.
func (n *Node) commitBlock(out bft.Output) {
	block, ok := n.core.ProposedBlock(out.BlockHash)
	if !ok {
		n.log.Error("commit for unknown block", "hash", out.BlockHash)
		return
	}
	receipts := n.state.ApplyBlock(&block)
	for i, r := range receipts {
		if r.Success {
			n.mempool.Remove(block.Transactions[i].From, block.Transactions[i].Nonce+1)
		}
	}

	if _, err := n.chain.PutBlock(&block); err != nil {
		n.log.Error("persist committed block failed", "err", err)
	}
	if err := n.chain.PutConsensusState(chainstore.ConsensusState{Height: out.Height, Round: n.core.Round, LastFinalized: out.BlockHash}); err != nil {
		n.log.Error("persist consensus state failed", "err", err)
	}

	if uint64(out.Height)%n.cfg.Consensus.EpochLength == 0 {
		n.validators.RotateEpoch()
		if snap, err := validatorSnapshot(n.validators); err == nil {
			if err := n.chain.PutValidatorSetSnapshot(snap); err != nil {
				n.log.Error("persist validator set snapshot failed", "err", err)
			}
		}
	}

	n.metrics.blocksCommitted.Inc()
	n.metrics.height.Set(float64(out.Height + 1))

	nextActive := n.validators.ActiveSet()
	n.dispatch(n.core.AdvanceHeight(out.Height+1, nextActive, n.signerPub, n.isSigner))
}

func validatorSnapshot(m *validator.Manager) ([]types.ValidatorInfo, error) {
	var out []types.ValidatorInfo
	for _, pub := range m.ActiveSet() {
		info, ok := m.Get(pub)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// SubmitTransaction admits tx to the mempool for future block inclusion.
func (n *Node) SubmitTransaction(tx *types.Transaction) error {
	return n.mempool.AddTx(tx)
}

// DeliverProposal feeds a proposal received from the p2p layer into the
// consensus event loop.
func (n *Node) DeliverProposal(p types.Proposal) {
	n.events <- event{proposal: &p}
}

// DeliverVote feeds a vote received from the p2p layer into the consensus
// event loop, routed to OnPrevote or OnPrecommit by its Type.
func (n *Node) DeliverVote(v types.Vote) {
	switch v.Type {
	case types.VoteTypePrevote:
		n.events <- event{prevote: &v}
	case types.VoteTypePrecommit:
		n.events <- event{precommit: &v}
	}
}

// Account returns a copy of an account's on-chain state.
func (n *Node) Account(pub types.PublicKey) (types.AccountState, bool) {
	return n.state.GetAccount(pub)
}
