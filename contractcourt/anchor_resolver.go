// Package contractcourt hosts the in-repo example of a txpublish.Publisher
// caller: a resolver that claims a commitment anchor output once a channel
// force-closes, the concrete shape spec.md refers to only by interface as
// "an already-prepared claim transaction".
package contractcourt

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/chainntfs"
	"github.com/lightninglabs/fundingcore/txpublish"
)

// extraConfDepth is how many additional confirmations, beyond the one the
// Publisher itself waits for, the resolver requires before declaring the
// anchor claim fully settled. Guards against a shallow reorg reversing the
// claim the moment the Publisher hands back control.
const extraConfDepth = 3

// AnchorResolverConfig bundles an anchor claim resolver's collaborators.
type AnchorResolverConfig struct {
	Notifier chainntfs.ChainNotifier

	// ClaimOutpoint is the commitment anchor output this resolver is
	// sweeping.
	ClaimOutpoint wire.OutPoint

	// BroadcastHeight bounds how far back chain notifications need to
	// scan for this claim.
	BroadcastHeight uint32

	// NewPublisher starts a Publisher for the given claim skeleton and
	// returns its terminal-result channel.
	NewPublisher func(ctx context.Context, skeleton *wire.MsgTx) <-chan txpublish.Result
}

// AnchorResolver incubates a commitment anchor claim through a
// txpublish.Publisher and waits for the resulting transaction to clear an
// extra confirmation margin before considering the contract resolved.
type AnchorResolver struct {
	cfg AnchorResolverConfig

	claimSkeleton *wire.MsgTx
	resolved      bool

	quit chan struct{}
}

// NewAnchorResolver creates a resolver for one anchor claim, given the
// unsigned, unfunded claim-transaction skeleton spending ClaimOutpoint.
func NewAnchorResolver(cfg AnchorResolverConfig, claimSkeleton *wire.MsgTx) *AnchorResolver {
	return &AnchorResolver{
		cfg:           cfg,
		claimSkeleton: claimSkeleton,
		quit:          make(chan struct{}),
	}
}

// Resolve drives the anchor claim to completion: fund/publish/RBF it via a
// Publisher, then wait for the confirmed transaction to clear extraConfDepth
// additional confirmations. It blocks until the contract is resolved, the
// Publisher reports a terminal rejection, or Stop is called.
func (a *AnchorResolver) Resolve(ctx context.Context) error {
	if a.resolved {
		return nil
	}

	log.Tracef("AnchorResolver(%v): incubating claim", a.cfg.ClaimOutpoint)

	resultCh := a.cfg.NewPublisher(ctx, a.claimSkeleton)

	var result txpublish.Result
	select {
	case result = <-resultCh:
	case <-a.quit:
		return fmt.Errorf("resolver stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Confirmed == nil {
		return fmt.Errorf("anchor claim %v failed to confirm: %v "+
			"(%w)", a.cfg.ClaimOutpoint, result.Rejected, result.Err)
	}

	log.Infof("AnchorResolver(%v): claim confirmed (txid=%v), waiting "+
		"for %d additional confirmations", a.cfg.ClaimOutpoint,
		result.Confirmed.TxHash(), extraConfDepth)

	if err := a.waitForDeepConfirmation(ctx, result.Confirmed); err != nil {
		return err
	}

	log.Infof("AnchorResolver(%v): fully resolved", a.cfg.ClaimOutpoint)
	a.resolved = true
	return nil
}

func (a *AnchorResolver) waitForDeepConfirmation(ctx context.Context, tx *wire.MsgTx) error {
	txid := tx.TxHash()
	pkScript := tx.TxOut[0].PkScript

	confNtfn, err := a.cfg.Notifier.RegisterConfirmationsNtfn(
		ctx, txid, pkScript, 1+extraConfDepth, a.cfg.BroadcastHeight,
	)
	if err != nil {
		return err
	}

	select {
	case _, ok := <-confNtfn.Confirmed:
		if !ok {
			return fmt.Errorf("chain notifier quit")
		}
		return nil

	case _, ok := <-confNtfn.NegativeConf:
		if ok {
			return fmt.Errorf("anchor claim %v reorged out after "+
				"confirming", txid)
		}
		return fmt.Errorf("chain notifier quit")

	case <-a.quit:
		return fmt.Errorf("resolver stopped")

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals Resolve to abandon any in-progress wait.
func (a *AnchorResolver) Stop() {
	close(a.quit)
}

// IsResolved reports whether the anchor claim has fully settled.
func (a *AnchorResolver) IsResolved() bool {
	return a.resolved
}
