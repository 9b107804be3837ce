package chanfunding

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
	"github.com/stretchr/testify/require"
)

// fakeWallet is a scripted onchainwallet.Adapter: each call to
// FundTransaction pops the next queued response, letting a test force a
// sanitize-and-retry cycle before eventually succeeding.
type fakeWallet struct {
	responses []fundResponse
	calls     int

	backing map[wire.OutPoint]*wire.MsgTx

	locked   map[wire.OutPoint]struct{}
	unlocked []wire.OutPoint
}

type fundResponse struct {
	result *onchainwallet.FundResult
	err    error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		backing: make(map[wire.OutPoint]*wire.MsgTx),
		locked:  make(map[wire.OutPoint]struct{}),
	}
}

func (w *fakeWallet) FundTransaction(ctx context.Context, tx *wire.MsgTx,
	feeRate onchainwallet.SatPerKWeight, externalWeight int64,
	minConfs int32, feeBudget *int64) (*onchainwallet.FundResult, error) {

	if w.calls >= len(w.responses) {
		panic("fakeWallet: ran out of scripted responses")
	}
	resp := w.responses[w.calls]
	w.calls++

	if resp.err != nil {
		return nil, resp.err
	}
	for _, in := range resp.result.Tx.TxIn {
		w.locked[in.PreviousOutPoint] = struct{}{}
	}
	return resp.result, nil
}

func (w *fakeWallet) GetTransaction(ctx context.Context,
	txid chainhash.Hash) (*wire.MsgTx, error) {

	for op, tx := range w.backing {
		if op.Hash == txid {
			return tx, nil
		}
	}
	return nil, errNotFound
}

var errNotFound = errors.New("fakeWallet: transaction not found")

func (w *fakeWallet) Rollback(ctx context.Context, tx *wire.MsgTx) error {
	return nil
}

func (w *fakeWallet) UnlockOutpoints(ctx context.Context, outpoints []wire.OutPoint) error {
	w.unlocked = append(w.unlocked, outpoints...)
	for _, op := range outpoints {
		delete(w.locked, op)
	}
	return nil
}

func (w *fakeWallet) AbandonTransaction(ctx context.Context, txid chainhash.Hash) error {
	return nil
}

func segwitScript(t *testing.T) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(make([]byte, 20)).
		Script()
	require.NoError(t, err)
	return script
}

func nonWitnessScript(t *testing.T) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(make([]byte, 20)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)
	return script
}

func backingTx(t *testing.T, pkScript []byte, value int64) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: pkScript})
	return tx
}

func outpointFor(tx *wire.MsgTx, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: tx.TxHash(), Index: index}
}

func deterministicRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestAssignSerialIDsParityAndOrdering(t *testing.T) {
	in1 := &LocalInput{}
	in2 := &LocalInput{}
	out1 := &LocalChangeOutput{}

	assignSerialIDs(deterministicRand(), 0, []OutgoingInput{in1, in2},
		[]OutgoingOutput{out1})

	require.True(t, in1.SerialID%2 == 0)
	require.True(t, in2.SerialID%2 == 0)
	require.True(t, out1.SerialID%2 == 0)
	require.NotEqual(t, in1.SerialID, in2.SerialID)
	require.True(t, out1.SerialID >= 4)

	in3 := &LocalInput{}
	assignSerialIDs(deterministicRand(), 1, []OutgoingInput{in3}, nil)
	require.Equal(t, uint64(1), in3.SerialID)
}

func TestNewChannelSingleInput(t *testing.T) {
	fundingScript := segwitScript(t)
	changeScript := segwitScript(t)
	changeScript[2] = 0x01 // must differ from the funding script

	wallet := newFakeWallet()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: 500_000, PkScript: fundingScript})
	tx.AddTxOut(&wire.TxOut{Value: 10_000, PkScript: changeScript})

	backing := backingTx(t, segwitScript(t), 510_500)
	tx.TxIn[0].PreviousOutPoint = outpointFor(backing, 0)
	wallet.backing[tx.TxIn[0].PreviousOutPoint] = backing

	wallet.responses = []fundResponse{
		{result: &onchainwallet.FundResult{Tx: tx, ChangePosition: 1}},
	}

	f := New(Config{Wallet: wallet, Rand: deterministicRand()}, FundingParams{
		Role:              Initiator,
		FundingScript:     fundingScript,
		LocalContribution: 500_000,
		TargetFeeRate:     onchainwallet.SatPerKWeight(1000),
		Purpose:           FundingTx{},
	})

	res := <-f.Start(context.Background())
	require.NoError(t, res.Err)
	require.NotNil(t, res.Contributions)

	require.Len(t, res.Contributions.Inputs, 1)
	require.Len(t, res.Contributions.Outputs, 2)

	var sawSharedOutput, sawChange bool
	for _, out := range res.Contributions.Outputs {
		switch v := out.(type) {
		case *SharedOutput:
			sawSharedOutput = true
			require.Equal(t, btcutil.Amount(500_000), v.LocalAmount)
		case *LocalChangeOutput:
			sawChange = true
			require.Equal(t, btcutil.Amount(10_000), v.Amount)
		}
	}
	require.True(t, sawSharedOutput)
	require.True(t, sawChange)
}

func TestNonInitiatorHasNoSharedInputOrOutput(t *testing.T) {
	fundingScript := segwitScript(t)
	wallet := newFakeWallet()

	sharedOutpoint := wire.OutPoint{Index: 3}
	changeScript := segwitScript(t)
	changeScript[2] = 0x01 // must differ from the funding script

	// The splice-in-only non-initiator shortcut never embeds the shared
	// input in its own dummy tx, so the wallet's response carries only a
	// plain wallet-selected input here.
	ownBacking := backingTx(t, segwitScript(t), 305_000)
	ownOutpoint := outpointFor(ownBacking, 0)
	wallet.backing[ownOutpoint] = ownBacking

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: ownOutpoint})
	tx.AddTxOut(&wire.TxOut{Value: 300_000, PkScript: fundingScript})
	tx.AddTxOut(&wire.TxOut{Value: 5_000, PkScript: changeScript})

	wallet.responses = []fundResponse{
		{result: &onchainwallet.FundResult{Tx: tx, ChangePosition: 1}},
	}

	f := New(Config{Wallet: wallet, Rand: deterministicRand()}, FundingParams{
		Role:              NonInitiator,
		FundingScript:     fundingScript,
		LocalContribution: 100_000,
		TargetFeeRate:     onchainwallet.SatPerKWeight(1000),
		Purpose: SpliceTx{
			PrevLocal:         200_000,
			PrevRemote:        200_000,
			PrevFundingAmount: 400_000,
		},
		SharedInput: &SharedInput{
			OutPoint:      sharedOutpoint,
			Script:        fundingScript,
			WitnessWeight: 300,
		},
	})

	res := <-f.Start(context.Background())
	require.NoError(t, res.Err)

	for _, in := range res.Contributions.Inputs {
		_, isShared := in.(*SharedInputContribution)
		require.False(t, isShared)
	}
	for _, out := range res.Contributions.Outputs {
		_, isShared := out.(*SharedOutput)
		require.False(t, isShared)
	}
}

func TestSanitizesNonSegwitInputAndRetries(t *testing.T) {
	fundingScript := segwitScript(t)
	wallet := newFakeWallet()

	badBacking := backingTx(t, nonWitnessScript(t), 200_000)
	badOutpoint := outpointFor(badBacking, 0)
	wallet.backing[badOutpoint] = badBacking

	firstTx := wire.NewMsgTx(2)
	firstTx.AddTxIn(&wire.TxIn{PreviousOutPoint: badOutpoint})
	firstTx.AddTxOut(&wire.TxOut{Value: 190_000, PkScript: fundingScript})

	goodBacking := backingTx(t, segwitScript(t), 200_000)
	goodOutpoint := outpointFor(goodBacking, 0)
	wallet.backing[goodOutpoint] = goodBacking

	secondTx := wire.NewMsgTx(2)
	secondTx.AddTxIn(&wire.TxIn{PreviousOutPoint: goodOutpoint})
	secondTx.AddTxOut(&wire.TxOut{Value: 190_000, PkScript: fundingScript})

	wallet.responses = []fundResponse{
		{result: &onchainwallet.FundResult{Tx: firstTx, ChangePosition: -1}},
		{result: &onchainwallet.FundResult{Tx: secondTx, ChangePosition: -1}},
	}

	f := New(Config{Wallet: wallet, Rand: deterministicRand()}, FundingParams{
		Role:              Initiator,
		FundingScript:     fundingScript,
		LocalContribution: 190_000,
		TargetFeeRate:     onchainwallet.SatPerKWeight(1000),
		Purpose:           FundingTx{},
	})

	res := <-f.Start(context.Background())
	require.NoError(t, res.Err)
	require.Equal(t, 2, wallet.calls)
	require.Len(t, res.Contributions.Inputs, 1)

	in := res.Contributions.Inputs[0].(*LocalInput)
	require.Equal(t, goodOutpoint.Index, in.OutputIndex)
}

func TestWalletReselectsUnusableFailsTerminal(t *testing.T) {
	fundingScript := segwitScript(t)
	wallet := newFakeWallet()

	badBacking := backingTx(t, nonWitnessScript(t), 200_000)
	badOutpoint := outpointFor(badBacking, 0)
	wallet.backing[badOutpoint] = badBacking

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: badOutpoint})
	tx.AddTxOut(&wire.TxOut{Value: 190_000, PkScript: fundingScript})

	wallet.responses = []fundResponse{
		{result: &onchainwallet.FundResult{Tx: tx, ChangePosition: -1}},
		{result: &onchainwallet.FundResult{Tx: tx, ChangePosition: -1}},
	}

	f := New(Config{Wallet: wallet, Rand: deterministicRand()}, FundingParams{
		Role:              Initiator,
		FundingScript:     fundingScript,
		LocalContribution: 190_000,
		TargetFeeRate:     onchainwallet.SatPerKWeight(1000),
		Purpose:           FundingTx{},
	})

	res := <-f.Start(context.Background())
	require.Error(t, res.Err)
	require.Nil(t, res.Contributions)
	require.Contains(t, res.Err.Error(), "previously unusable outpoint")
}
