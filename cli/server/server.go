// Package server implements the CLI command that runs a MintGate node.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/maexx393/mintgate/cli/options"
	"github.com/maexx393/mintgate/pkg/config"
	"github.com/maexx393/mintgate/pkg/core"
	"github.com/maexx393/mintgate/pkg/core/interop"
	"github.com/maexx393/mintgate/pkg/core/storage"
	"github.com/maexx393/mintgate/pkg/gate"
	"github.com/maexx393/mintgate/pkg/market"
	"github.com/maexx393/mintgate/pkg/nft"
	"github.com/maexx393/mintgate/pkg/services/metrics"
	"github.com/maexx393/mintgate/pkg/services/rpcsrv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns the 'node' command.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:   "node",
			Usage:  "Start a MintGate node",
			Action: startServer,
			Flags: []cli.Flag{
				options.Config,
				options.Debug,
			},
		},
	}
}

// newGraceContext returns a context cancelled by SIGINT or SIGTERM.
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

// initContract runs the contract's own `init` method. A node restarted on an
// existing database finds the contract initialized already, which is fine.
func initContract(shard *core.Shard, id gate.AccountID, args any) error {
	exec, err := shard.Call(id, id, "init", args, gate.U128{}, 0)
	if err != nil {
		return err
	}
	root := exec.Root()
	if root.State == interop.Successful || root.FaultMessage == "Already initialized" {
		return nil
	}
	return fmt.Errorf("init failed: %s", root.FaultMessage)
}

// deployGenesis registers the marketplace contracts and funds the configured
// accounts. It is idempotent with respect to the underlying database, so a
// node restart reuses the persisted state instead of recreating it.
func deployGenesis(shard *core.Shard, gen config.Genesis, log *zap.Logger) error {
	if err := shard.RegisterContract(gen.MarketAccount, market.New()); err != nil {
		return fmt.Errorf("market contract: %w", err)
	}
	if err := shard.RegisterContract(gen.NFTAccount, nft.New()); err != nil {
		return fmt.Errorf("NFT contract: %w", err)
	}
	if err := initContract(shard, gen.MarketAccount, nil); err != nil {
		return fmt.Errorf("market contract: %w", err)
	}
	if err := initContract(shard, gen.NFTAccount, map[string]any{"market_id": gen.MarketAccount}); err != nil {
		return fmt.Errorf("NFT contract: %w", err)
	}

	balances, err := gen.Balances()
	if err != nil {
		return err
	}
	ids := make([]gate.AccountID, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if shard.HasAccount(id) {
			continue
		}
		if err := shard.CreateAccount(id, balances[id]); err != nil {
			return fmt.Errorf("genesis account %s: %w", id, err)
		}
		log.Info("created genesis account",
			zap.String("account", string(id)),
			zap.Stringer("balance", balances[id]))
	}
	return nil
}

func startServer(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	var logDebug = ctx.Bool("debug")
	log, logLevel, logCloser, err := options.HandleLoggingParams(logDebug, cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("could not initialize storage: %w", err), 1)
	}
	shard, err := core.NewShard(store, log)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			log.Warn("failed to close the storage", zap.Error(closeErr))
		}
		return cli.NewExitError(fmt.Errorf("could not initialize the shard: %w", err), 1)
	}
	if err := deployGenesis(shard, cfg.Genesis, log); err != nil {
		_ = shard.Close()
		_ = store.Close()
		return cli.NewExitError(fmt.Errorf("could not deploy genesis: %w", err), 1)
	}

	errChan := make(chan error)
	rpcServer := rpcsrv.New(shard, cfg.ApplicationConfiguration.RPC, cfg.Genesis.MarketAccount, log, errChan)
	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)

	go rpcServer.Start()
	go prometheus.Start()
	go pprof.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)
	signal.Notify(sigCh, sigusr1)

	log.Info("node started",
		zap.String("version", config.Version),
		zap.String("market", string(cfg.Genesis.MarketAccount)),
		zap.String("nft", string(cfg.Genesis.NFTAccount)))

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			cancel()
		case sig := <-sigCh:
			var newLogLevel = zapcore.InvalidLevel

			log.Info("signal received", zap.Stringer("name", sig))
			cfgnew, err := options.GetConfigFromContext(ctx)
			if err != nil {
				log.Warn("can't reread the config file, signal ignored", zap.Error(err))
				break // Continue working.
			}
			if !logDebug && cfgnew.ApplicationConfiguration.LogLevel != cfg.ApplicationConfiguration.LogLevel {
				newLogLevel, err = zapcore.ParseLevel(cfgnew.ApplicationConfiguration.LogLevel)
				if err != nil {
					log.Warn("wrong LogLevel in the config, signal ignored", zap.Error(err))
					break // Continue working.
				}
			}
			switch sig {
			case sighup:
				if newLogLevel != zapcore.InvalidLevel {
					logLevel.SetLevel(newLogLevel)
					log.Warn("using new logging level", zap.Stringer("level", newLogLevel))
				}
			case sigusr1:
				// Server instances can't be restarted, make a new one.
				rpcServer.Shutdown()
				rpcServer = rpcsrv.New(shard, cfgnew.ApplicationConfiguration.RPC, cfgnew.Genesis.MarketAccount, log, errChan)
				go rpcServer.Start()
			}
			cfg = cfgnew
		case <-grace.Done():
			signal.Stop(sigCh)
			break Main
		}
	}

	rpcServer.Shutdown()
	prometheus.ShutDown()
	pprof.ShutDown()
	if err := shard.Close(); err != nil {
		log.Warn("failed to persist the shard state", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Warn("failed to close the storage", zap.Error(err))
	}

	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}
