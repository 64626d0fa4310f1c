package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sambigeara/lwwdict/pkg/config"
	"github.com/sambigeara/lwwdict/pkg/replica"
	"github.com/sambigeara/lwwdict/pkg/state"
	"github.com/sambigeara/lwwdict/pkg/transport"
	"github.com/sambigeara/lwwdict/pkg/workspace"
)

var errNotInitialised = errors.New("replica not initialised, run `lwwdict init` first")

type session struct {
	cfg     *config.Config
	store   *state.Store
	replica *replica.Replica
}

func (s *session) Close() error {
	return s.store.Close()
}

func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	dirFlag, _ := cmd.Flags().GetString("dir")
	dir, err := workspace.EnsureDir(dirFlag)
	if err != nil {
		return "", nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return "", nil, err
	}
	if cfg.ReplicaID == "" {
		return "", nil, errNotInitialised
	}
	return dir, cfg, nil
}

// openSession locks the state directory and loads its replica. tr may be nil
// for one-shot commands.
func openSession(dir string, cfg *config.Config, tr transport.Transport) (*session, error) {
	store, err := state.Open(dir)
	if err != nil {
		return nil, err
	}

	r, err := replica.New(replica.Options{
		Log:            zap.S(),
		Clock:          cfg.NewClock(),
		Store:          store,
		Transport:      tr,
		ID:             cfg.ReplicaID,
		Peers:          cfg.Peers,
		GossipInterval: cfg.GossipInterval,
		Bias:           cfg.BiasValue(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &session{cfg: cfg, store: store, replica: r}, nil
}

func openLocalSession(cmd *cobra.Command) (*session, error) {
	dir, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openSession(dir, cfg, nil)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dirFlag, _ := cmd.Flags().GetString("dir")
	dir, err := workspace.EnsureDir(dirFlag)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if config.Exists(dir) && !force {
		return fmt.Errorf("replica already initialised in %s (use --force to overwrite)", dir)
	}

	cfg := config.New()
	if id, _ := cmd.Flags().GetString("id"); id != "" {
		cfg.ReplicaID = id
	}
	cfg.Bias, _ = cmd.Flags().GetString("bias")
	cfg.Clock, _ = cmd.Flags().GetString("clock")
	cfg.Port, _ = cmd.Flags().GetInt("port")
	peers, _ := cmd.Flags().GetStringSlice("peer")
	for _, p := range peers {
		if err := cfg.AddPeer(p); err != nil {
			return err
		}
	}

	if err := config.Save(dir, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "initialised replica %s in %s\n", cfg.ReplicaID, dir)
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	s, err := openLocalSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.replica.Put(args[0], args[1])
}

func runDel(cmd *cobra.Command, args []string) error {
	s, err := openLocalSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.replica.Delete(args[0])
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: not present\n", args[0])
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	s, err := openLocalSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	byValue, _ := cmd.Flags().GetBool("by-value")
	lookup := s.replica.Get
	if byValue {
		lookup = s.replica.Find
	}

	tv, ok := lookup(args[0])
	if !ok {
		return fmt.Errorf("%s: not found", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), tv.Value)
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	s, err := openLocalSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	path := args[0]
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = state.FilePath(path)
	}

	snap, err := state.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.replica.MergeSnapshot(snap); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "merged %d adds and %d removes from %s\n", len(snap.Adds), len(snap.Removes), path)
	return nil
}

func runNode(cmd *cobra.Command, _ []string) error {
	defer zap.S().Sync() //nolint:errcheck

	dir, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if p, _ := cmd.Flags().GetInt("port"); p != 0 {
		cfg.Port = p
	}
	extra, _ := cmd.Flags().GetStringSlice("peer")
	for _, p := range extra {
		if err := cfg.AddPeer(p); err != nil {
			return err
		}
	}

	tr, err := transport.NewTransport(cfg.Port)
	if err != nil {
		return err
	}
	defer tr.Close()

	s, err := openSession(dir, cfg, tr)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.S().Infow("starting lwwdict node", "replica", cfg.ReplicaID, "port", cfg.Port, "bias", cfg.Bias)
	return s.replica.Run(ctx)
}
