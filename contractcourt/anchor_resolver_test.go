package contractcourt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/chainntfs"
	"github.com/lightninglabs/fundingcore/txpublish"
	"github.com/stretchr/testify/require"
)

// fakeNotifier implements chainntfs.ChainNotifier, handing out a single
// controllable ConfirmationEvent and refusing any other registration.
type fakeNotifier struct {
	confEvent *chainntfs.ConfirmationEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		confEvent: &chainntfs.ConfirmationEvent{
			Confirmed:    make(chan int32, 1),
			NegativeConf: make(chan int32, 1),
		},
	}
}

func (f *fakeNotifier) RegisterConfirmationsNtfn(ctx context.Context,
	txid chainhash.Hash, pkScript []byte, numConfs,
	heightHint uint32) (*chainntfs.ConfirmationEvent, error) {

	return f.confEvent, nil
}

func (f *fakeNotifier) RegisterSpendNtfn(ctx context.Context, op wire.OutPoint,
	pkScript []byte, heightHint uint32) (*chainntfs.SpendEvent, error) {

	return nil, errors.New("fakeNotifier: RegisterSpendNtfn not used by this test")
}

func (f *fakeNotifier) RegisterBlockEpochNtfn(ctx context.Context,
	targetHeight int32) (*chainntfs.BlockEpochEvent, error) {

	return nil, errors.New("fakeNotifier: RegisterBlockEpochNtfn not used by this test")
}

func testClaimSkeleton() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x00}})
	return tx
}

func TestAnchorResolverResolvesAfterDeepConfirmation(t *testing.T) {
	notifier := newFakeNotifier()
	resultCh := make(chan txpublish.Result, 1)

	r := NewAnchorResolver(AnchorResolverConfig{
		Notifier: notifier,
		NewPublisher: func(ctx context.Context, skeleton *wire.MsgTx) <-chan txpublish.Result {
			return resultCh
		},
	}, testClaimSkeleton())

	confirmedTx := wire.NewMsgTx(2)
	confirmedTx.AddTxOut(&wire.TxOut{Value: 900, PkScript: []byte{0x00}})
	resultCh <- txpublish.Result{Confirmed: confirmedTx}

	done := make(chan error, 1)
	go func() { done <- r.Resolve(context.Background()) }()

	require.Eventually(t, func() bool {
		select {
		case notifier.confEvent.Confirmed <- 700:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
		require.True(t, r.IsResolved())
	case <-time.After(time.Second):
		t.Fatal("resolver did not finish")
	}
}

func TestAnchorResolverPublisherRejectionPropagates(t *testing.T) {
	notifier := newFakeNotifier()
	resultCh := make(chan txpublish.Result, 1)
	resultCh <- txpublish.Result{Rejected: "stopped"}

	r := NewAnchorResolver(AnchorResolverConfig{
		Notifier: notifier,
		NewPublisher: func(ctx context.Context, skeleton *wire.MsgTx) <-chan txpublish.Result {
			return resultCh
		},
	}, testClaimSkeleton())

	err := r.Resolve(context.Background())
	require.Error(t, err)
	require.False(t, r.IsResolved())
}

func TestAnchorResolverReorgAfterConfirmFails(t *testing.T) {
	notifier := newFakeNotifier()
	resultCh := make(chan txpublish.Result, 1)
	confirmedTx := wire.NewMsgTx(2)
	confirmedTx.AddTxOut(&wire.TxOut{Value: 900, PkScript: []byte{0x00}})
	resultCh <- txpublish.Result{Confirmed: confirmedTx}

	r := NewAnchorResolver(AnchorResolverConfig{
		Notifier: notifier,
		NewPublisher: func(ctx context.Context, skeleton *wire.MsgTx) <-chan txpublish.Result {
			return resultCh
		},
	}, testClaimSkeleton())

	done := make(chan error, 1)
	go func() { done <- r.Resolve(context.Background()) }()

	require.Eventually(t, func() bool {
		select {
		case notifier.confEvent.NegativeConf <- 2:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		require.False(t, r.IsResolved())
	case <-time.After(time.Second):
		t.Fatal("resolver did not finish")
	}
}
