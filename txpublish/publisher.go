package txpublish

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/feepolicy"
	"github.com/lightninglabs/fundingcore/internal/actorq"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// deferredRedeliveryDelay is how long a command arriving in a state that
// isn't ready for it is held before being offered again.
const deferredRedeliveryDelay = time.Second

// Config bundles a Publisher's external collaborators and parameters.
type Config struct {
	Wallet          onchainwallet.Adapter
	Funder          ClaimFunder
	MempoolMonitor  MempoolMonitor
	TimeLockChecker TimeLockChecker
	PrePublisher    PrePublisher
	FeeEstimator    feepolicy.Estimator

	// ConfirmBefore is the height by which the claim must confirm.
	ConfirmBefore uint32

	// IsAnchorClaim skips time-lock checking entirely.
	IsAnchorClaim bool

	// ClaimInput is the original outpoint this publisher is claiming.
	// Deliberately never unlocked on exit, so other components can retry
	// spending it.
	ClaimInput wire.OutPoint

	MaxPublishRetryDelay time.Duration

	// Rand drives jitter. Injectable for deterministic tests.
	Rand *rand.Rand
}

// Publisher is the replaceable-transaction publisher state machine: it
// funds, publishes, monitors, and RBFs a claim transaction until it
// confirms or is abandoned.
type Publisher struct {
	cfg      Config
	skeleton *wire.MsgTx
	mailbox  *actorq.Mailbox[command]
}

// New creates a Publisher for one claim-transaction skeleton.
func New(cfg Config, skeleton *wire.MsgTx) *Publisher {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	if cfg.MaxPublishRetryDelay == 0 {
		cfg.MaxPublishRetryDelay = 30 * time.Second
	}
	return &Publisher{
		cfg:      cfg,
		skeleton: skeleton,
		mailbox:  actorq.New[command](16),
	}
}

// command is the closed set of asynchronous inputs the Wait state
// processes, beyond the mempool events forwarded from active monitors.
type command interface{ isCommand() }

type stopCmd struct{}
type checkFeeCmd struct{ height uint32 }
type bumpFeeCmd struct{ target onchainwallet.SatPerKWeight }
type mempoolCmd struct{ event MempoolEvent }
type replacementDoneCmd struct {
	tx  *FundedTx
	err error
}

func (stopCmd) isCommand()            {}
func (checkFeeCmd) isCommand()        {}
func (bumpFeeCmd) isCommand()         {}
func (mempoolCmd) isCommand()         {}
func (replacementDoneCmd) isCommand() {}

// Stop asks the Publisher to unlock its outpoints and terminate at the
// next safe point.
func (p *Publisher) Stop() {
	p.mailbox.Send(stopCmd{})
}

// Start spawns the Publisher and returns a channel on which exactly one
// Result will be sent.
func (p *Publisher) Start(ctx context.Context) <-chan Result {
	replyTo := make(chan Result, 1)
	go p.run(ctx, replyTo)
	return replyTo
}

func (p *Publisher) run(ctx context.Context, replyTo chan<- Result) {
	defer p.mailbox.Close()

	if err := p.cfg.PrePublisher.CheckPreconditions(p.skeleton); err != nil {
		replyTo <- Result{Rejected: "preconditions", Err: err}
		return
	}

	if !p.cfg.IsAnchorClaim {
		if err := p.cfg.TimeLockChecker.WaitForMaturity(ctx, p.cfg.ClaimInput); err != nil {
			replyTo <- Result{Rejected: "time-lock", Err: err}
			return
		}
	}

	funded, err := p.fundAt(ctx, nil, 0)
	if err != nil {
		replyTo <- Result{Rejected: "funding", Err: err}
		return
	}

	txs := []*FundedTx{funded}
	monitors := map[chainhash.Hash]context.CancelFunc{}
	p.watch(ctx, funded, monitors)

	result := p.wait(ctx, txs, monitors)
	replyTo <- result
}

// fundAt computes the current target feerate (or uses target directly if
// non-zero) and invokes the Funder collaborator for either the first
// attempt (previous == nil) or a replacement.
func (p *Publisher) fundAt(ctx context.Context, previous *FundedTx,
	target onchainwallet.SatPerKWeight) (*FundedTx, error) {

	feeRate := target
	if feeRate == 0 {
		var err error
		feeRate, err = feepolicy.TargetFeeRate(p.cfg.FeeEstimator,
			p.cfg.ConfirmBefore, p.currentHeightHint())
		if err != nil {
			return nil, fmt.Errorf("computing target feerate: %w", err)
		}
	}

	return p.cfg.Funder.FundClaim(ctx, p.skeleton, feeRate, previous)
}

// currentHeightHint is a placeholder used only to seed the very first fee
// quote before any mempool height observation has arrived; subsequent
// quotes use the height carried by TxInMempool events.
func (p *Publisher) currentHeightHint() uint32 {
	if p.cfg.ConfirmBefore > 144 {
		return p.cfg.ConfirmBefore - 144
	}
	return 0
}

// watch starts a MempoolMonitor for tx and forwards its events into the
// mailbox as mempoolCmd, tracking the monitor's cancellation so it can be
// stopped once the tx is superseded.
func (p *Publisher) watch(ctx context.Context, tx *FundedTx,
	monitors map[chainhash.Hash]context.CancelFunc) {

	watchCtx, cancel := context.WithCancel(ctx)
	monitors[tx.Txid()] = cancel

	events, err := p.cfg.MempoolMonitor.Watch(watchCtx, tx.Tx)
	if err != nil {
		cancel()
		p.mailbox.Send(mempoolCmd{event: TxRejected{
			ID:     tx.Txid(),
			Reason: err.Error(),
		}})
		return
	}

	go func() {
		for ev := range events {
			p.mailbox.Send(mempoolCmd{event: ev})
		}
	}()
}

// scheduleCheckFee schedules a CheckFee command after a random jitter in
// [1ms, MaxPublishRetryDelay], to avoid every claim's publisher hammering
// the fee estimator in the same instant.
func (p *Publisher) scheduleCheckFee(height uint32) {
	jitter := time.Millisecond + time.Duration(p.cfg.Rand.Int63n(
		int64(p.cfg.MaxPublishRetryDelay-time.Millisecond)+1))

	time.AfterFunc(jitter, func() {
		p.mailbox.Send(checkFeeCmd{height: height})
	})
}

// wait implements the Wait state: txs is the ordered history of funded
// attempts, txs[len(txs)-1] the current candidate.
func (p *Publisher) wait(ctx context.Context, txs []*FundedTx,
	monitors map[chainhash.Hash]context.CancelFunc) Result {

	var fundingInFlight bool

	for {
		select {
		case <-ctx.Done():
			return p.unlockAndStop(ctx, txs)

		case c := <-p.mailbox.Inbox():
			switch cmd := c.(type) {
			case stopCmd:
				if fundingInFlight {
					p.mailbox.Defer(cmd, deferredRedeliveryDelay)
					continue
				}
				return p.unlockAndStop(ctx, txs)

			case mempoolCmd:
				if fundingInFlight {
					p.mailbox.Defer(cmd, deferredRedeliveryDelay)
					continue
				}
				next, result, done := p.handleMempoolEvent(
					ctx, cmd.event, txs, monitors)
				if done {
					return result
				}
				txs = next

			case checkFeeCmd:
				last := txs[len(txs)-1]
				blocksRemaining := int32(p.cfg.ConfirmBefore) - int32(cmd.height)

				policyQuote, err := feepolicy.TargetFeeRate(
					p.cfg.FeeEstimator, p.cfg.ConfirmBefore, cmd.height)
				if err != nil {
					continue
				}

				target := bumpedFeerate(policyQuote, blocksRemaining, last.Feerate)
				if target == 0 {
					continue
				}
				p.mailbox.Send(bumpFeeCmd{target: target})

			case bumpFeeCmd:
				if fundingInFlight {
					p.mailbox.Defer(cmd, deferredRedeliveryDelay)
					continue
				}
				fundingInFlight = true
				p.startReplacementFunding(ctx, txs[len(txs)-1], cmd.target)

			case replacementDoneCmd:
				fundingInFlight = false
				if cmd.err != nil {
					log.Errorf("replacement funding failed: %v", cmd.err)
					continue
				}
				txs = append(append([]*FundedTx{}, txs...), cmd.tx)
				p.watch(ctx, cmd.tx, monitors)
			}
		}
	}
}

// startReplacementFunding runs the Funder call in the background and
// reports the outcome as a replacementDoneCmd. Commands that arrive while
// this is in flight are deferred rather than processed out of order.
func (p *Publisher) startReplacementFunding(ctx context.Context,
	previous *FundedTx, target onchainwallet.SatPerKWeight) {

	go func() {
		funded, err := p.fundAt(ctx, previous, target)
		p.mailbox.Send(replacementDoneCmd{tx: funded, err: err})
	}()
}

// handleMempoolEvent processes one mempool event for any tracked tx,
// returning the updated tx history, and (result, true) if the Publisher
// should terminate.
func (p *Publisher) handleMempoolEvent(ctx context.Context, ev MempoolEvent,
	txs []*FundedTx, monitors map[chainhash.Hash]context.CancelFunc) ([]*FundedTx, Result, bool) {

	switch e := ev.(type) {
	case TxInMempool:
		if e.ID == txs[len(txs)-1].Txid() {
			p.scheduleCheckFee(e.Height)
		}
		return txs, Result{}, false

	case TxRecentlyConfirmed:
		return txs, Result{}, false

	case TxDeeplyBuried:
		for _, cancel := range monitors {
			cancel()
		}
		p.finalizeOutpoints(ctx, txs)
		return txs, Result{Confirmed: e.Tx}, true

	case TxRejected:
		return p.handleRejection(ctx, e, txs, monitors)
	}

	return txs, Result{}, false
}

func (p *Publisher) handleRejection(ctx context.Context, e TxRejected,
	txs []*FundedTx, monitors map[chainhash.Hash]context.CancelFunc) ([]*FundedTx, Result, bool) {

	if len(txs) == 1 {
		p.finalizeOutpoints(ctx, txs)
		return txs, Result{Rejected: e.Reason}, true
	}

	var failed *FundedTx
	var remaining []*FundedTx
	for _, tx := range txs {
		if tx.Txid() == e.ID {
			failed = tx
			continue
		}
		remaining = append(remaining, tx)
	}
	if failed == nil {
		return txs, Result{}, false
	}

	if cancel, ok := monitors[failed.Txid()]; ok {
		cancel()
		delete(monitors, failed.Txid())
	}

	p.cleanUpFailed(ctx, failed, remaining)

	return remaining, Result{}, false
}

// cleanUpFailed abandons failed in the wallet and unlocks the inputs it no
// longer shares with any still-live attempt.
func (p *Publisher) cleanUpFailed(ctx context.Context, failed *FundedTx, live []*FundedTx) {
	if err := p.cfg.Wallet.AbandonTransaction(ctx, failed.Txid()); err != nil {
		log.Errorf("abandoning failed tx %v: %v", failed.Txid(), err)
	}

	liveInputs := make(map[wire.OutPoint]struct{})
	for _, tx := range live {
		for _, op := range tx.Inputs {
			liveInputs[op] = struct{}{}
		}
	}

	var toUnlock []wire.OutPoint
	for _, op := range failed.Inputs {
		if _, shared := liveInputs[op]; shared {
			continue
		}
		toUnlock = append(toUnlock, op)
	}
	if len(toUnlock) == 0 {
		return
	}
	if err := p.cfg.Wallet.UnlockOutpoints(ctx, toUnlock); err != nil {
		log.Errorf("unlocking failed tx inputs: %v", err)
	}
}

// unlockAndStop abandons every tracked tx and unlocks their inputs except
// the original claim input, which is deliberately left available for
// retry by other components.
func (p *Publisher) unlockAndStop(ctx context.Context, txs []*FundedTx) Result {
	p.finalizeOutpoints(ctx, txs)
	return Result{Rejected: "stopped"}
}

// finalizeOutpoints abandons every tx in txs and unlocks their input
// outpoints, excluding the original claim input.
func (p *Publisher) finalizeOutpoints(ctx context.Context, txs []*FundedTx) {
	var toUnlock []wire.OutPoint
	for _, tx := range txs {
		if err := p.cfg.Wallet.AbandonTransaction(ctx, tx.Txid()); err != nil {
			log.Errorf("abandoning tx %v: %v", tx.Txid(), err)
		}
		for _, op := range tx.Inputs {
			if op == p.cfg.ClaimInput {
				continue
			}
			toUnlock = append(toUnlock, op)
		}
	}
	if len(toUnlock) == 0 {
		return
	}
	if err := p.cfg.Wallet.UnlockOutpoints(ctx, toUnlock); err != nil {
		log.Errorf("unlocking tracked outpoints: %v", err)
	}
}
