package chanfunding

import (
	"math/rand"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// serialIDed lets every input/output variant have its final serial-id set
// exactly once, via an explicit setter rather than reflective copying.
type serialIDed interface {
	SetSerialID(id uint64)
}

// OutgoingInput is the closed, tagged variant of an input this side is
// contributing to the interactive-tx session.
type OutgoingInput interface {
	serialIDed
	isOutgoingInput()
}

// LocalInput is a plain wallet UTXO.
type LocalInput struct {
	SerialID    uint64
	PrevTx      *wire.MsgTx
	OutputIndex uint32
	Sequence    uint32
}

func (i *LocalInput) SetSerialID(id uint64) { i.SerialID = id }
func (*LocalInput) isOutgoingInput()        {}

// SharedInputContribution is the previous channel's funding outpoint,
// contributed only by the initiator on operations that include one.
type SharedInputContribution struct {
	SerialID      uint64
	Outpoint      wire.OutPoint
	Script        []byte
	Sequence      uint32
	LocalBalance  btcutil.Amount
	RemoteBalance btcutil.Amount
	HtlcBalance   btcutil.Amount
}

func (i *SharedInputContribution) SetSerialID(id uint64) { i.SerialID = id }
func (*SharedInputContribution) isOutgoingInput()        {}

// OutgoingOutput is the closed, tagged variant of an output this side is
// contributing.
type OutgoingOutput interface {
	serialIDed
	isOutgoingOutput()
}

// SharedOutput is the new (or updated) channel funding output, co-owned by
// both peers. Exactly one must be present when a shared output is needed.
type SharedOutput struct {
	SerialID     uint64
	Script       []byte
	LocalAmount  btcutil.Amount
	RemoteAmount btcutil.Amount
	HtlcBalance  btcutil.Amount
}

func (o *SharedOutput) SetSerialID(id uint64) { o.SerialID = id }
func (*SharedOutput) isOutgoingOutput()       {}

// Amount is the combined value of the shared output.
func (o *SharedOutput) Amount() btcutil.Amount {
	return o.LocalAmount + o.RemoteAmount
}

// LocalNonChangeOutput is a user-requested output (e.g. a splice-out
// destination) that must appear in the final transaction unchanged.
type LocalNonChangeOutput struct {
	SerialID uint64
	Amount   btcutil.Amount
	Script   []byte
}

func (o *LocalNonChangeOutput) SetSerialID(id uint64) { o.SerialID = id }
func (*LocalNonChangeOutput) isOutgoingOutput()       {}

// LocalChangeOutput is the wallet's own change output, optional.
type LocalChangeOutput struct {
	SerialID uint64
	Amount   btcutil.Amount
	Script   []byte
}

func (o *LocalChangeOutput) SetSerialID(id uint64) { o.SerialID = id }
func (*LocalChangeOutput) isOutgoingOutput()       {}

// FundingContributions is the Funder's terminal, successful reply: a final
// set of inputs and outputs with serial-ids assigned.
type FundingContributions struct {
	Inputs  []OutgoingInput
	Outputs []OutgoingOutput
}

// assignSerialIDs randomizes input order and output order independently,
// then assigns serial-ids per the parity rule: input i gets 2i+parity,
// output j gets 2(j+len(inputs))+parity. The PRNG is injected so tests can
// make the resulting order deterministic.
func assignSerialIDs(rng *rand.Rand, parity uint64,
	inputs []OutgoingInput, outputs []OutgoingOutput) {

	rng.Shuffle(len(inputs), func(i, j int) {
		inputs[i], inputs[j] = inputs[j], inputs[i]
	})
	rng.Shuffle(len(outputs), func(i, j int) {
		outputs[i], outputs[j] = outputs[j], outputs[i]
	})

	for i, in := range inputs {
		in.SetSerialID(2*uint64(i) + parity)
	}
	for j, out := range outputs {
		out.SetSerialID(2*(uint64(j)+uint64(len(inputs))) + parity)
	}
}
