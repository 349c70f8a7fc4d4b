package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/mcp"
	"github.com/rgehrsitz/tyche/internal/metrics"
	"github.com/rgehrsitz/tyche/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve [design-file]",
	Short: "Serve exploration sessions as MCP tools over stdio",
	Long: "Serve exploration sessions of a design as Model Context Protocol tools over " +
		"standard input and output. Logs go to stderr.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		compiled, err := a.loadDesign(cmd, args[0])
		if err != nil {
			return err
		}

		addr := a.settings.MetricsAddr
		if cmd.Flags().Changed("metrics-addr") {
			addr, _ = cmd.Flags().GetString("metrics-addr")
		}
		var recorder *metrics.Recorder
		if addr != "" {
			recorder = metrics.NewRecorder()
		}

		store := session.NewStore(sessionFactory(a, compiled, recorder))
		server := mcp.NewServer(store, version, a.sugar)

		ctx, stop := signalContext(cmd)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		if recorder != nil {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", recorder.Handler())
			httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			g.Go(func() error {
				a.sugar.Infof("serving metrics on %s/metrics", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
		}
		g.Go(func() error {
			defer stop()
			return server.ServeStdio(gctx)
		})
		return g.Wait()
	},
}

// sessionFactory creates sessions over the compiled design, reporting to recorder when set
func sessionFactory(a *app, compiled *design.Compiled, recorder *metrics.Recorder) session.Factory {
	return func() (*session.Session, error) {
		opts := a.sessionOptions()
		if recorder != nil {
			opts.Evaluation.Observer = recorder
			opts.Optimizer.Observer = recorder
		}
		return session.NewFromCompiled(compiled, opts)
	}
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9090")
}
