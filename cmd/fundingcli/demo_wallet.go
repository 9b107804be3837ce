package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// demoWallet is a toy onchainwallet.Adapter that mints one new confirmed
// UTXO per funding call and never actually broadcasts anything. It exists
// only so cmd/fundingcli has something to exercise a Funder/Publisher
// against without a real wallet backend.
type demoWallet struct {
	mu       sync.Mutex
	utxoSeq  uint32
	locked   map[wire.OutPoint]struct{}
	backing  map[wire.OutPoint]*wire.MsgTx
	sentTxns map[chainhash.Hash]*wire.MsgTx
}

func newDemoWallet() *demoWallet {
	return &demoWallet{
		locked:   make(map[wire.OutPoint]struct{}),
		backing:  make(map[wire.OutPoint]*wire.MsgTx),
		sentTxns: make(map[chainhash.Hash]*wire.MsgTx),
	}
}

func demoChangeScript() []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(make([]byte, 20)).
		Script()
	return script
}

// FundTransaction adds one freshly-minted P2WPKH input large enough to
// cover tx's declared outputs plus a generous flat fee, and a change output
// for the remainder.
func (w *demoWallet) FundTransaction(ctx context.Context, tx *wire.MsgTx,
	feeRate onchainwallet.SatPerKWeight, externalInputsWeight int64,
	minConfs int32, feeBudget *int64) (*onchainwallet.FundResult, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	var outputTotal int64
	for _, out := range tx.TxOut {
		outputTotal += out.Value
	}

	const flatFee = 2000
	inputValue := outputTotal + flatFee + 50_000

	backing := wire.NewMsgTx(2)
	backing.AddTxOut(&wire.TxOut{Value: inputValue, PkScript: demoChangeScript()})

	w.utxoSeq++
	backing.LockTime = w.utxoSeq // makes each minted outpoint unique
	op := wire.OutPoint{Hash: backing.TxHash(), Index: 0}
	w.backing[op] = backing
	w.locked[op] = struct{}{}

	clone := tx.Copy()
	clone.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	changePos := len(clone.TxOut)
	clone.AddTxOut(&wire.TxOut{
		Value:    inputValue - outputTotal - flatFee,
		PkScript: demoChangeScript(),
	})

	return &onchainwallet.FundResult{Tx: clone, ChangePosition: changePos}, nil
}

func (w *demoWallet) GetTransaction(ctx context.Context,
	txid chainhash.Hash) (*wire.MsgTx, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	for op, tx := range w.backing {
		if op.Hash == txid {
			return tx, nil
		}
	}
	if tx, ok := w.sentTxns[txid]; ok {
		return tx, nil
	}
	return nil, fmt.Errorf("demoWallet: unknown txid %v", txid)
}

func (w *demoWallet) Rollback(ctx context.Context, tx *wire.MsgTx) error {
	return w.UnlockOutpoints(ctx, outpointsOf(tx))
}

func (w *demoWallet) UnlockOutpoints(ctx context.Context, outpoints []wire.OutPoint) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, op := range outpoints {
		delete(w.locked, op)
	}
	return nil
}

func (w *demoWallet) AbandonTransaction(ctx context.Context, txid chainhash.Hash) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sentTxns, txid)
	return nil
}

// Ping is exercised by the startup liveness check; a real wallet adapter
// would round-trip an actual RPC or database call here.
func (w *demoWallet) Ping() error {
	return nil
}

func outpointsOf(tx *wire.MsgTx) []wire.OutPoint {
	ops := make([]wire.OutPoint, len(tx.TxIn))
	for i, in := range tx.TxIn {
		ops[i] = in.PreviousOutPoint
	}
	return ops
}
