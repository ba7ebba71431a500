package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trustscore/internal/oracle"
	"github.com/alfredjeanlab/trustscore/internal/scoring"
)

var publishDaemon bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push changed trust scores to the on-chain oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.cfg.ValidatePublishing(); err != nil {
			return err
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(rt.cfg.OraclePrivateKey, "0x"))
		if err != nil {
			return fmt.Errorf("TRUSTSCORE_ORACLE_PRIVATE_KEY: %w", err)
		}

		agg := scoring.NewAggregator(rt.store, rt.publisher, rt.cfg.HalfLifeDays, rt.logger)
		updater := oracle.NewUpdater(rt.chain, rt.store, agg, rt.publisher, oracle.Config{
			OracleAddress:  contractAddress(rt.cfg.OracleContract),
			PrivateKey:     key,
			BatchSize:      rt.cfg.ScoreBatchSize,
			MinScoreChange: rt.cfg.MinScoreChange,
			ConfirmTimeout: rt.cfg.ConfirmTimeout,
			BatchDelay:     rt.cfg.BatchDelay,
		}, rt.logger)

		if !publishDaemon {
			n, err := updater.RunUpdateCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("published %d scores\n", n)
			return nil
		}

		daemonCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		rt.logger.Info("oracle daemon started", "interval", rt.cfg.UpdateInterval)

		err = updater.RunDaemon(daemonCtx, rt.cfg.UpdateInterval)
		if daemonCtx.Err() != nil {
			rt.logger.Info("received signal, shutting down")
			return nil
		}
		return err
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishDaemon, "daemon", false, "keep publishing on the update interval")
}
