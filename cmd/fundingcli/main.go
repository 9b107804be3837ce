// Command fundingcli is a thin manual-exercise harness: it wires a Funder
// against an in-process demo wallet, the way lncli wires
// RPC calls against a running node.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/chanfunding"
	"github.com/lightninglabs/fundingcore/onchainwallet"
	"github.com/lightninglabs/fundingcore/txpublish"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.NewApp()
	app.Name = "fundingcli"
	app.Usage = "exercise the interactive-tx funder and claim publisher against a demo wallet"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to an optional ini file of default settings",
		},
	}
	app.Commands = []cli.Command{
		fundCommand,
		runAllCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fundingcli: %v\n", err)
		os.Exit(1)
	}
}

var fundCommand = cli.Command{
	Name:  "fund",
	Usage: "run one interactive-tx funding session against the demo wallet",
	Flags: []cli.Flag{
		cli.Int64Flag{
			Name:  "local_amt",
			Usage: "local contribution to the funding output, in satoshis",
			Value: 500_000,
		},
		cli.Uint64Flag{
			Name:  "sat_per_kw",
			Usage: "target feerate in satoshis per kilo-weight-unit",
			Value: 1000,
		},
	},
	Action: runFund,
}

func runFund(c *cli.Context) error {
	fileCfg, err := loadFileConfig(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	wallet := newDemoWallet()

	if err := checkWalletLiveness(wallet); err != nil {
		return fmt.Errorf("wallet liveness check failed: %w", err)
	}

	targetFeeRate := fileCfg.DefaultFeeRateSatPerKW
	if c.IsSet("sat_per_kw") {
		targetFeeRate = c.Uint64("sat_per_kw")
	}

	fundingScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(make([]byte, 32)).
		Script()
	if err != nil {
		return err
	}

	funder := chanfunding.New(chanfunding.Config{Wallet: wallet}, chanfunding.FundingParams{
		Role:              chanfunding.Initiator,
		FundingScript:     fundingScript,
		LocalContribution: btcutil.Amount(c.Int64("local_amt")),
		TargetFeeRate:     onchainwallet.SatPerKWeight(targetFeeRate),
		Purpose:           chanfunding.FundingTx{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := <-funder.Start(ctx)
	if res.Err != nil {
		return fmt.Errorf("funding failed: %w", res.Err)
	}

	fmt.Printf("funded session produced %d input(s), %d output(s)\n",
		len(res.Contributions.Inputs), len(res.Contributions.Outputs))
	for _, in := range res.Contributions.Inputs {
		describeInput(in)
	}
	for _, out := range res.Contributions.Outputs {
		describeOutput(out)
	}

	return nil
}

var runAllCommand = cli.Command{
	Name: "run-all",
	Usage: "fund N independent channel-open sessions and N independent " +
		"claim-publish sessions concurrently against the demo wallet",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "sessions",
			Usage: "number of concurrent funding/publish session pairs to run",
			Value: 2,
		},
	},
	Action: runAll,
}

// runAll supervises several independent Funder and Publisher sessions
// concurrently with a single errgroup, the way a real node would run many
// simultaneous channel opens and claim publishes without letting one
// session's failure silently swallow another's.
func runAll(c *cli.Context) error {
	fileCfg, err := loadFileConfig(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	group, gCtx := errgroup.WithContext(ctx)
	wallet := newDemoWallet()

	sessions := c.Int("sessions")
	for i := 0; i < sessions; i++ {
		group.Go(func() error {
			return runOneFundingSession(gCtx, wallet, fileCfg)
		})
		group.Go(func() error {
			return runOnePublishSession(gCtx, wallet, fileCfg)
		})
	}

	return group.Wait()
}

func runOneFundingSession(ctx context.Context, wallet *demoWallet, fileCfg *fileConfig) error {
	fundingScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(make([]byte, 32)).
		Script()
	if err != nil {
		return err
	}

	funder := chanfunding.New(chanfunding.Config{Wallet: wallet}, chanfunding.FundingParams{
		Role:              chanfunding.Initiator,
		FundingScript:     fundingScript,
		LocalContribution: 500_000,
		TargetFeeRate:     onchainwallet.SatPerKWeight(fileCfg.DefaultFeeRateSatPerKW),
		Purpose:           chanfunding.FundingTx{},
	})

	res := <-funder.Start(ctx)
	return res.Err
}

func runOnePublishSession(ctx context.Context, wallet *demoWallet, fileCfg *fileConfig) error {
	claimInput := wire.OutPoint{Index: 0}

	skeleton := wire.NewMsgTx(onchainwallet.TxVersion)
	skeleton.AddTxIn(&wire.TxIn{PreviousOutPoint: claimInput})
	skeleton.AddTxOut(&wire.TxOut{Value: 100_000, PkScript: demoChangeScript()})

	publisher := txpublish.New(txpublish.Config{
		Wallet:               wallet,
		Funder:               &demoClaimFunder{wallet: wallet},
		MempoolMonitor:       demoMonitor{},
		TimeLockChecker:      demoTimeLockChecker{},
		PrePublisher:         demoPrePublisher{claimInput: claimInput},
		FeeEstimator:         fixedFeeEstimator(onchainwallet.SatPerKWeight(fileCfg.DefaultFeeRateSatPerKW)),
		IsAnchorClaim:        true,
		ClaimInput:           claimInput,
		MaxPublishRetryDelay: fileCfg.MaxPublishRetryDelay,
	}, skeleton)

	res := <-publisher.Start(ctx)
	return res.Err
}

func describeInput(in chanfunding.OutgoingInput) {
	switch v := in.(type) {
	case *chanfunding.LocalInput:
		fmt.Printf("  local input: output %d of a previous tx\n", v.OutputIndex)
	case *chanfunding.SharedInputContribution:
		fmt.Printf("  shared input: %v\n", v.Outpoint)
	}
}

func describeOutput(out chanfunding.OutgoingOutput) {
	switch v := out.(type) {
	case *chanfunding.SharedOutput:
		fmt.Printf("  shared output: local=%d remote=%d\n", v.LocalAmount, v.RemoteAmount)
	case *chanfunding.LocalChangeOutput:
		fmt.Printf("  change output: %d\n", v.Amount)
	case *chanfunding.LocalNonChangeOutput:
		fmt.Printf("  non-change output: %d\n", v.Amount)
	}
}

// checkWalletLiveness runs a healthcheck.Observation against the wallet
// backend before any funding session starts, retrying per the
// Observation's own Attempts/Backoff, so a down backend surfaces as a
// clear startup error instead of a WalletError deep inside Fund.
func checkWalletLiveness(wallet *demoWallet) error {
	obs := &healthcheck.Observation{
		Name:     "wallet-backend",
		Check:    wallet.Ping,
		Attempts: 3,
		Backoff:  time.Second,
		Timeout:  5 * time.Second,
	}

	var err error
	for attempt := 0; attempt < obs.Attempts; attempt++ {
		if err = obs.Check(); err == nil {
			return nil
		}
		time.Sleep(obs.Backoff)
	}

	return fmt.Errorf("%s: %w", obs.Name, err)
}
