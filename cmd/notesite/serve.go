package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	notesite "github.com/alnah/go-notesite"
	"github.com/alnah/go-notesite/internal/server"
)

const dirPermissions = 0o750

// runServe builds the site with live reload, then serves it and rebuilds
// changed notes until ctx is canceled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	f, rest, err := parseCommandFlags(cmdServe, args, env.Stderr)
	if err != nil {
		return err
	}
	s, err := resolveSettings(f, rest, env)
	if err != nil {
		return err
	}

	log := newLogger(env.Stderr, s.common)
	b, closeAll, err := newBuilder(s, env, log, server.DefaultLiveReloadPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeAll() }()

	// Failed pages are reported and fixed while the server runs.
	report, err := b.Build(ctx)
	if report != nil {
		printReport(env, report, b.OutputDir(), s.common.quiet)
	}
	if err != nil && !errors.Is(err, notesite.ErrPageFailed) {
		return err
	}
	if err := os.MkdirAll(b.OutputDir(), dirPermissions); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cfg := server.Config{
		Addr:           s.cfg.Server.Addr,
		Root:           b.OutputDir(),
		LiveReloadPath: server.DefaultLiveReloadPath,
	}
	if !s.cfg.Server.NoWatch {
		cfg.WatchDir = b.InputDir()
	}
	srv, err := server.New(cfg, b, log)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %v", server.ErrListen, err)
	}
	if !s.common.quiet {
		fmt.Fprintf(env.Stdout, "Serving %s at http://%s\n", b.OutputDir(), ln.Addr())
	}
	return srv.Serve(ctx, ln)
}
