package txpublish

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrePublisherRejectsWrongInput(t *testing.T) {
	claimInput := wire.OutPoint{Index: 3}
	pp := DefaultPrePublisher{ClaimInput: claimInput, RelayFee: 253}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 7}})
	tx.AddTxOut(&wire.TxOut{Value: 100_000, PkScript: make([]byte, 22)})

	require.Error(t, pp.CheckPreconditions(tx))
}

func TestDefaultPrePublisherRejectsDustOutput(t *testing.T) {
	claimInput := wire.OutPoint{Index: 3}
	pp := DefaultPrePublisher{ClaimInput: claimInput, RelayFee: 253}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: claimInput})
	tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: make([]byte, 22)})

	err := pp.CheckPreconditions(tx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "dust")
}

func TestDefaultPrePublisherAcceptsReasonableOutput(t *testing.T) {
	claimInput := wire.OutPoint{Index: 3}
	pp := DefaultPrePublisher{ClaimInput: claimInput, RelayFee: 253}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: claimInput})
	tx.AddTxOut(&wire.TxOut{Value: 100_000, PkScript: make([]byte, 22)})

	require.NoError(t, pp.CheckPreconditions(tx))
}
