package chanfunding

import (
	"context"
	"math/rand"

	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// Result is the Funder's single terminal reply: either a successful
// FundingContributions, or a non-nil Err describing why funding failed.
type Result struct {
	Contributions *FundingContributions
	Err           error
}

// Config bundles the Funder's external collaborators.
type Config struct {
	Wallet onchainwallet.Adapter

	// Rand is the PRNG used for input/output order randomization.
	// Injectable so tests can make ordering deterministic.
	Rand *rand.Rand
}

// Funder is the interactive-tx funder state machine. One Funder instance
// handles exactly one FundTransaction session: the caller spawns it,
// receives exactly one terminal Result, and the instance self-terminates.
type Funder struct {
	cfg    Config
	params FundingParams
}

// New creates a Funder for one interactive-tx session.
func New(cfg Config, params FundingParams) *Funder {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	return &Funder{cfg: cfg, params: params}
}

// session holds the mutable state threaded through one Funder's
// (possibly recursive) coin-selection loop.
type session struct {
	cfg    Config
	params FundingParams
	wallet onchainwallet.Adapter

	// knownInputs caches resolved input detail by outpoint across
	// recursive fund() calls.
	knownInputs map[wire.OutPoint]*inputDetail

	// unusable accumulates every outpoint this session has determined
	// it cannot use, across recursive attempts. These stay locked in
	// the wallet until termination.
	unusable map[wire.OutPoint]UnusableInput

	// everLocked is the union of every outpoint returned by any
	// successful wallet.FundTransaction call in this session, used to
	// unlock everything if the wallet call ultimately fails outright.
	everLocked map[wire.OutPoint]struct{}

	// prevAttemptOutpoints are never unlocked, on any exit path.
	prevAttemptOutpoints map[wire.OutPoint]struct{}
}

// Start spawns the Funder and returns a channel on which exactly one
// Result will be sent.
func (f *Funder) Start(ctx context.Context) <-chan Result {
	replyTo := make(chan Result, 1)
	go f.run(ctx, replyTo)
	return replyTo
}

func (f *Funder) run(ctx context.Context, replyTo chan<- Result) {
	s := &session{
		cfg:                  f.cfg,
		params:               f.params,
		wallet:               f.cfg.Wallet,
		knownInputs:          make(map[wire.OutPoint]*inputDetail),
		unusable:             make(map[wire.OutPoint]UnusableInput),
		everLocked:           make(map[wire.OutPoint]struct{}),
		prevAttemptOutpoints: previousAttemptOutpoints(f.params.Purpose),
	}

	contribs, err := s.fundSession(ctx)
	replyTo <- Result{Contributions: contribs, Err: err}
}

// fundSession runs the preparation and shortcut logic, dispatching into
// the coin-selection loop only when additional wallet funding is needed.
func (s *session) fundSession(ctx context.Context) (*FundingContributions, error) {
	prior := previousWalletInputs(s.params)

	if !needsAdditionalFunding(s.params) {
		log.Debugf("funding session for channel=%x needs no additional "+
			"wallet input", s.params.ChannelID)
		return s.finishWithoutWallet(prior)
	}

	var dummy *wire.MsgTx
	if isSpliceInOnlyNonInitiator(s.params) {
		dummy = buildSpliceInOnlyDummyTx(s.params)
	} else {
		dummy = buildDefaultDummyTx(s.params)
	}

	contribs, err := s.fund(ctx, dummy)
	if err != nil {
		return nil, err
	}

	// Only unusable inputs not belonging to a previous attempt are
	// unlocked before we reply.
	s.unlockStaleUnusable(ctx)

	return contribs, nil
}

// finishWithoutWallet handles the no-wallet-funding-needed path: build
// contributions directly from previousWalletInputs, attaching the shared
// input/output if this side is the initiator.
func (s *session) finishWithoutWallet(prior []wire.OutPoint) (*FundingContributions, error) {
	var inputs []OutgoingInput
	for _, op := range prior {
		d, err := s.fetchInputDetailByOutpoint(op)
		if err != nil {
			return nil, errors.WrapPrefix(err, "reusing previous "+
				"wallet input", 0)
		}
		inputs = append(inputs, &LocalInput{
			PrevTx:      d.backingTx,
			OutputIndex: op.Index,
			Sequence:    d.sequence,
		})
	}

	inputs = s.addSharedInputIfInitiator(inputs)
	outputs := s.buildOutputsFromParams(nil)

	return s.sortAndReply(inputs, outputs)
}

// fetchInputDetailByOutpoint is like fetchInputDetail but starting from a
// bare outpoint (used when reusing a previous attempt's wallet inputs,
// where we don't have a concrete wire.TxIn handy).
func (s *session) fetchInputDetailByOutpoint(op wire.OutPoint) (*inputDetail, error) {
	in := &wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum}
	return s.fetchInputDetail(context.Background(), in)
}

// addSharedInputIfInitiator appends the shared input contribution when
// this side is the initiator and a shared input exists. Only the
// initiator ever contributes the shared input structurally.
func (s *session) addSharedInputIfInitiator(inputs []OutgoingInput) []OutgoingInput {
	if s.params.Role != Initiator || s.params.SharedInput == nil {
		return inputs
	}

	local, remote := priorBalances(s.params.Purpose)

	return append(inputs, &SharedInputContribution{
		Outpoint:      s.params.SharedInput.OutPoint,
		Script:        s.params.SharedInput.Script,
		Sequence:      onchainwallet.SharedInputSequence,
		LocalBalance:  local,
		RemoteBalance: remote,
		HtlcBalance:   htlcBalance(s.params.Purpose),
	})
}

// sortAndReply randomizes ordering, assigns serial-ids, and returns the
// final FundingContributions.
func (s *session) sortAndReply(inputs []OutgoingInput,
	outputs []OutgoingOutput) (*FundingContributions, error) {

	assignSerialIDs(s.cfg.Rand, s.params.Role.Parity(), inputs, outputs)

	return &FundingContributions{Inputs: inputs, Outputs: outputs}, nil
}

// unlockStaleUnusable releases every outpoint we marked unusable during
// this session that does not belong to a still-potentially-confirmable
// previous attempt.
func (s *session) unlockStaleUnusable(ctx context.Context) {
	var toUnlock []wire.OutPoint
	for op := range s.unusable {
		if _, keep := s.prevAttemptOutpoints[op]; keep {
			continue
		}
		toUnlock = append(toUnlock, op)
	}
	if len(toUnlock) == 0 {
		return
	}

	if err := s.wallet.UnlockOutpoints(ctx, toUnlock); err != nil {
		log.Errorf("failed to unlock stale unusable outpoints: %v", err)
	}
}
