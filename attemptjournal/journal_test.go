package attemptjournal

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	first := Attempt{
		Purpose: "funding-tx",
		Txid:    chainhash.Hash{1},
		Feerate: 1000,
		Fee:     500,
		Outcome: OutcomeFunded,
	}
	second := Attempt{
		Purpose: "claim",
		Txid:    chainhash.Hash{2},
		Feerate: 1500,
		Fee:     700,
		Outcome: OutcomeConfirmed,
		Detail:  "deeply buried",
	}

	require.NoError(t, j.Record(first))
	require.NoError(t, j.Record(second))

	recent, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first.
	require.Equal(t, second, recent[0])
	require.Equal(t, first, recent[1])
}

func TestRecentRespectsLimit(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(Attempt{Purpose: "x", Outcome: OutcomeFunded}))
	}

	recent, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "funded", OutcomeFunded.String())
	require.Equal(t, "confirmed", OutcomeConfirmed.String())
	require.Equal(t, "rejected", OutcomeRejected.String())
	require.Equal(t, "stopped", OutcomeStopped.String())
	require.Equal(t, "unknown", Outcome(99).String())
}
