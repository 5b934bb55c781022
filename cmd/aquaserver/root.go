// Command aquaserver runs the snapshot cycler and HTTP dispatcher of
// spec.md §4: it watches a family of sibling repositories for stability,
// materializes immutable snapshots of them, enumerates their tests, and
// dispatches those tests to polling browser clients.
//
// Grounded on the teacher's cmd/root.go command/flag/logging shape,
// adapted from a Kubernetes-watching TUI to a headless HTTP service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/phetsims/aqua/internal/catalog"
	"github.com/phetsims/aqua/internal/config"
	"github.com/phetsims/aqua/internal/cycler"
	"github.com/phetsims/aqua/internal/dispatcher"
	"github.com/phetsims/aqua/internal/logging"
	"github.com/phetsims/aqua/internal/reposvc"
	"github.com/phetsims/aqua/internal/results"
	"github.com/phetsims/aqua/internal/ringstore"
	"github.com/phetsims/aqua/internal/snapshot"
)

var cfgFile string

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "aquaserver",
	Short: "Continuous-integration test dispatcher for phetsims repositories",
	Long: `aquaserver watches a family of sibling git repositories for stability,
materializes timestamped snapshots once they settle, enumerates the tests
each snapshot carries, and serves those tests out to polling browser
clients over HTTP, recording their pass/fail results as they report back.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aquaserver.yaml)")
	config.BindFlags(rootCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".aquaserver")
	}

	viper.SetEnvPrefix("AQUA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run wires every component and runs the cycler and HTTP server
// concurrently until an interrupt signal or a fatal component error.
func run(parentCtx context.Context) error {
	cfg := config.FromViper()
	log := logging.New(cfg.Debug)

	log.Info().Strs("knownRepos", cfg.KnownRepos).Str("reposRoot", cfg.ReposRoot).Msg("starting aquaserver")

	checker := reposvc.New(cfg.ReposRoot, cfg.SelfRepo, cfg.KnownRepos, cfg.RemoteBranch, cfg.RemoteBase, log)
	enumerator := catalog.NewFileEnumerator()
	ring := snapshot.NewRing()
	resultTree := results.NewTree()

	opts := []cycler.Option{cycler.WithPollInterval(cfg.PollInterval)}

	var ringStore *ringstore.Store
	var restoredEntries []ringstore.Entry
	if cfg.RingStorePath != "" {
		var err error
		ringStore, err = ringstore.Open(cfg.RingStorePath, ringstore.DefaultCodec)
		if err != nil {
			return fmt.Errorf("opening ring store: %w", err)
		}
		defer ringStore.Close()
		opts = append(opts, cycler.WithRingStore(ringStore))

		restoredEntries, err = ringStore.LoadAll()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load ring store metadata on startup")
		} else {
			log.Info().Int("count", len(restoredEntries)).Msg("loaded ring metadata from previous run (directories themselves are not restored)")
		}
	}

	cyc := cycler.New(checker, enumerator, ring, resultTree, cfg.SnapshotsRoot, log, opts...)
	cyc.Seed(restoredEntries)
	srv := dispatcher.NewServer(ring, resultTree, cyc, log)

	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt)
	defer cancel()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return cyc.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("dispatcher listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("aquaserver exiting with error")
		return err
	}

	log.Info().Msg("aquaserver stopped, bye!")
	return nil
}
