package chanfunding

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// maxBackingTxSize is the tx_add_input wire limit: each tx_add_input
// message carries the entire backing transaction, which must serialize to
// no more than this many bytes.
const maxBackingTxSize = 65_000

// inputDetail carries everything the usability check and final assembly
// need about one input of a funded transaction.
type inputDetail struct {
	outpoint wire.OutPoint
	sequence uint32

	// isShared is true for the shared (previous channel) input, which
	// is always usable and needs no backing transaction.
	isShared bool

	// backingTx is the witness-stripped transaction that produced this
	// input's outpoint. Nil for the shared input.
	backingTx *wire.MsgTx

	outputScript []byte
}

// canUseInput reports whether an input is usable: its encoded backing
// transaction must fit the wire envelope and its output must be native
// SegWit. The shared input is always usable.
func canUseInput(d *inputDetail) (bool, string) {
	if d.isShared {
		return true, ""
	}

	var buf bytes.Buffer
	if err := d.backingTx.Serialize(&buf); err != nil {
		return false, fmt.Sprintf("failed to serialize backing tx: %v", err)
	}
	if buf.Len() > maxBackingTxSize {
		return false, fmt.Sprintf(
			"backing tx is %d bytes, exceeds tx_add_input limit of %d",
			buf.Len(), maxBackingTxSize)
	}

	if !txscript.IsWitnessProgram(d.outputScript) {
		return false, "output is not native SegWit"
	}

	return true, ""
}

// stripWitnesses returns a copy of tx with every input's witness data
// removed, so its serialized size respects the 65k tx_add_input envelope.
func stripWitnesses(tx *wire.MsgTx) *wire.MsgTx {
	stripped := tx.Copy()
	for _, in := range stripped.TxIn {
		in.Witness = nil
	}
	return stripped
}

// fetchInputDetail resolves the detail needed to judge one input's
// usability: reuse a cached detail if known, synthesize a Shared detail
// if the outpoint matches the session's shared input, or fetch and strip
// the backing transaction.
func (s *session) fetchInputDetail(ctx context.Context, in *wire.TxIn) (*inputDetail, error) {

	op := in.PreviousOutPoint

	if d, ok := s.knownInputs[op]; ok {
		return d, nil
	}

	if s.params.SharedInput != nil && op == s.params.SharedInput.OutPoint {
		d := &inputDetail{
			outpoint: op,
			sequence: in.Sequence,
			isShared: true,
		}
		s.knownInputs[op] = d
		return d, nil
	}

	prevTx, err := s.wallet.GetTransaction(ctx, op.Hash)
	if err != nil {
		return nil, fmt.Errorf("fetching backing tx %v: %w", op.Hash, err)
	}

	stripped := stripWitnesses(prevTx)
	if int(op.Index) >= len(stripped.TxOut) {
		return nil, fmt.Errorf("outpoint %v has no output %d", op.Hash,
			op.Index)
	}

	d := &inputDetail{
		outpoint:     op,
		sequence:     in.Sequence,
		backingTx:    stripped,
		outputScript: stripped.TxOut[op.Index].PkScript,
	}
	s.knownInputs[op] = d

	return d, nil
}

// previousAttemptOutpoints collects every outpoint referenced by an input
// of any still-potentially-confirmable previous transaction. Outpoints in
// this set are never unlocked, since an earlier attempt may yet confirm.
func previousAttemptOutpoints(p Purpose) map[wire.OutPoint]struct{} {
	out := make(map[wire.OutPoint]struct{})
	for _, tx := range p.PreviousTransactions() {
		for _, in := range tx.TxIn {
			out[in.PreviousOutPoint] = struct{}{}
		}
	}
	return out
}
