package onchainwallet

import "github.com/btcsuite/btcd/blockchain"

// Byte-size constants for the script/witness shapes this pipeline
// constructs or consumes: generic funding-tx inputs/outputs used by the
// interactive-tx funder and the replaceable-tx publisher.
const (
	// P2WPKHSize 22 bytes: OP_0 (1) + push (1) + 20-byte hash.
	P2WPKHSize = 1 + 1 + 20

	// P2WSHSize 34 bytes: OP_0 (1) + push (1) + 32-byte hash.
	P2WSHSize = 1 + 1 + 32

	// P2WKHOutputSize 31 bytes: value (8) + varint (1) + P2WPKHSize.
	P2WKHOutputSize = 8 + 1 + P2WPKHSize

	// P2WSHOutputSize 43 bytes: value (8) + varint (1) + P2WSHSize.
	P2WSHOutputSize = 8 + 1 + P2WSHSize

	// P2WKHWitnessSize 108 bytes: sig push (1+73) + pubkey push (1+33).
	P2WKHWitnessSize = 1 + 73 + 1 + 33

	// InputSize 41 bytes: outpoint (36) + empty scriptSig varint (1) +
	// sequence (4). Witness data is metered separately, scaled by
	// blockchain.WitnessScaleFactor.
	InputSize = 32 + 4 + 1 + 4

	// BaseTxOverhead 10 bytes: version (4) + input/output counts (2
	// varints, 1 byte each) + locktime (4). The segwit marker and flag
	// are metered separately, as WitnessHeaderSize.
	BaseTxOverhead = 4 + 1 + 1 + 4

	// WitnessHeaderSize 2 bytes: marker + flag, counted once per
	// transaction and scaled like witness data.
	WitnessHeaderSize = 1 + 1
)

// TxWeightEstimator accumulates the base-size and witness-size
// contributions of a transaction's inputs and outputs so a final weight
// can be computed without serializing an actual transaction. Used by
// chanfunding's common-weight fee credit-back calculation.
type TxWeightEstimator struct {
	hasWitness   bool
	inputCount   int
	outputCount  int
	inputSize    int
	inputWitness int
	outputSize   int
}

// AddP2WKHInput records the weight of a native P2WKH input.
func (twe *TxWeightEstimator) AddP2WKHInput() *TxWeightEstimator {
	twe.hasWitness = true
	twe.inputCount++
	twe.inputSize += InputSize
	twe.inputWitness += P2WKHWitnessSize
	return twe
}

// AddWitnessInput records the weight of a native witness input whose
// witness stack is witnessSize bytes once serialized.
func (twe *TxWeightEstimator) AddWitnessInput(witnessSize int) *TxWeightEstimator {
	twe.hasWitness = true
	twe.inputCount++
	twe.inputSize += InputSize
	twe.inputWitness += witnessSize
	return twe
}

// AddTxOutput records the weight of an output of the given pkScript size
// (script bytes only, not including the 8-byte value + varint prefix).
func (twe *TxWeightEstimator) AddTxOutput(pkScriptSize int) *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += 8 + 1 + pkScriptSize
	return twe
}

// AddP2WKHOutput records the weight of a P2WKH change or payment output.
func (twe *TxWeightEstimator) AddP2WKHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WKHOutputSize
	return twe
}

// AddP2WSHOutput records the weight of a P2WSH output (e.g. the shared
// funding output).
func (twe *TxWeightEstimator) AddP2WSHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WSHOutputSize
	return twe
}

// Weight returns the total weight of the transaction being estimated.
func (twe *TxWeightEstimator) Weight() int64 {
	baseSize := int64(BaseTxOverhead + twe.inputSize + twe.outputSize)
	witnessSize := int64(0)
	if twe.hasWitness {
		witnessSize = int64(WitnessHeaderSize + twe.inputWitness)
	}

	return blockchain.WitnessScaleFactor*baseSize + witnessSize
}
