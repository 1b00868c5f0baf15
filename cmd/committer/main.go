// Command committer runs the settlement pipeline: it reads blocks from an
// L2 source chain, commits their headers and state to an L1 settlement
// contract, and tracks every submission through to finalization.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/l2settle/committer/internal/config"
	"github.com/l2settle/committer/internal/httputil"
	"github.com/l2settle/committer/internal/kms"
	"github.com/l2settle/committer/internal/l1"
	"github.com/l2settle/committer/internal/l2"
	"github.com/l2settle/committer/internal/metrics"
	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/scheduler"
	"github.com/l2settle/committer/internal/services"
	"github.com/l2settle/committer/internal/storage/postgres"
	"github.com/l2settle/committer/internal/validator"
)

var log = logrus.WithField("component", "main")

func main() {
	app := &cli.App{
		Name:  "committer",
		Usage: "commit L2 blocks and state to an L1 settlement contract",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "committer.toml",
				Usage:   "path to the TOML configuration file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("committer exited with error")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Connect(ctx, postgres.Config{
		Host:           cfg.DB.Host,
		Port:           cfg.DB.Port,
		Username:       cfg.DB.Username,
		Password:       cfg.DB.Password,
		Database:       cfg.DB.Database,
		MaxConnections: cfg.DB.MaxConnections,
		UseSSL:         cfg.DB.UseSSL,
	})
	if err != nil {
		return err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return err
	}

	eth, err := ethclient.DialContext(ctx, cfg.Eth.RPC)
	if err != nil {
		store.Close()
		return err
	}

	mainSigner, err := kms.New(ctx, cfg.Eth.MainKeyARN)
	if err != nil {
		store.Close()
		return err
	}
	blobSigner := ports.Signer(mainSigner)
	if cfg.Eth.BlobPoolKeyARN != "" {
		blobSigner, err = kms.New(ctx, cfg.Eth.BlobPoolKeyARN)
		if err != nil {
			store.Close()
			return err
		}
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		store.Close()
		return err
	}

	contract, err := l1.NewContract(common.HexToAddress(cfg.Eth.ContractAddress), eth)
	if err != nil {
		store.Close()
		return err
	}
	l1Client := l1.New(eth, contract, mainSigner, blobSigner, chainID, cfg.Eth.ErrorsBeforeUnhealthy)

	l2Client := l2.New(&http.Client{Timeout: 30 * time.Second}, cfg.Fuel.GraphQLEndpoint, cfg.Fuel.ErrorsBeforeUnhealthy)

	producerAddress, err := decodeProducerAddress(cfg.Fuel.BlockProducerAddress)
	if err != nil {
		store.Close()
		return err
	}
	v := validator.New(producerAddress)

	registry := metrics.NewRegistry()

	blockCommitter := services.NewBlockCommitter(l1Client, store, l2Client, v, cfg.Eth.CommitInterval)
	commitListener := services.NewCommitListener(l1Client, store)
	stateImporter := services.NewStateImporter(l2Client, store, v)
	stateCommitter := services.NewStateCommitter(l1Client, store)
	stateListener := services.NewStateListener(l1Client, store, cfg.Eth.FinalizationDelay)
	balanceTracker := services.NewBalanceTracker(l1Client)

	for _, m := range []metrics.RegistersMetrics{commitListener, stateListener, balanceTracker} {
		m.RegisterMetrics(registry)
	}

	sched := scheduler.New()
	sched.Register(scheduler.Task{Name: "block_committer", Runner: blockCommitter, Interval: cfg.Internal.BlockCommitterInterval})
	sched.Register(scheduler.Task{Name: "commit_listener", Runner: commitListener, Interval: cfg.Internal.CommitListenerInterval})
	sched.Register(scheduler.Task{Name: "state_importer", Runner: stateImporter, Interval: cfg.Internal.StateImporterInterval})
	sched.Register(scheduler.Task{Name: "state_committer", Runner: stateCommitter, Interval: cfg.Internal.StateCommitterInterval})
	sched.Register(scheduler.Task{Name: "state_listener", Runner: stateListener, Interval: cfg.Internal.StateListenerInterval})
	sched.Register(scheduler.Task{Name: "balance_tracker", Runner: balanceTracker, Interval: cfg.Internal.BalanceUpdateInterval})

	healthCheckers := []ports.HealthChecker{l1Client.ConnectionHealthChecker(), l2Client.ConnectionHealthChecker()}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthzHandler(healthCheckers))
	httpServer := &http.Server{Addr: cfg.Internal.MetricsAddr, Handler: mux}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gCtx) })
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	err = g.Wait()
	store.Close()
	return err
}

func healthzHandler(checkers []ports.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, h := range checkers {
			if !h.Healthy() {
				httputil.Errorf(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}
}

func decodeProducerAddress(hexAddr string) ([32]byte, error) {
	var out [32]byte
	b := common.FromHex(hexAddr)
	if len(b) != 32 {
		return out, fmt.Errorf("block producer address must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
