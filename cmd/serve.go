package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevHack1010/NemHemAI/internal/analyze"
	"github.com/DevHack1010/NemHemAI/internal/sandbox"
	"github.com/DevHack1010/NemHemAI/internal/server"
	"github.com/DevHack1010/NemHemAI/internal/store"
	"github.com/DevHack1010/NemHemAI/internal/synth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	Example: `  nemhem serve
  nemhem serve --listen :9000 --db ./analysis.db
  nemhem serve --ollama-host http://gpu-box:11434`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}
		log := newLogger()

		st, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		client := synth.NewClient(cfg.OllamaHost,
			time.Duration(cfg.RequestTimeoutSec)*time.Second,
			time.Duration(cfg.ProbeTimeoutSec)*time.Second,
			cfg.RetryMaxAttempts,
			time.Duration(cfg.RetryBaseDelaySec)*time.Second)

		runner := &sandbox.Runner{
			Query: func(sql string) (string, error) {
				return st.Preview(context.Background(), sql)
			},
		}
		orch := analyze.New(client, runner, cfg.AllowedModels, log)
		srv := server.New(st, orch, int64(cfg.MaxUploadMB)<<20, log)

		httpSrv := &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     srv.Handler(),
			ReadTimeout: 60 * time.Second,
			// Long enough for a full generation plus execution on one stream.
			WriteTimeout: time.Duration(cfg.StreamTimeoutSec) * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info("server listening", "addr", cfg.ListenAddr,
				"db", cfg.DatabasePath, "ollama", cfg.OllamaHost)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
