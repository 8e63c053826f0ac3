package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/bizdesk/internal/backend"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/store"
)

const shutdownTimeout = 5 * time.Second

// runServe runs the development backend until interrupted.
func runServe(cmd serveCmd) error {
	if !model.UserType(cmd.UserType).Valid() {
		return fmt.Errorf("unknown user type %q", cmd.UserType)
	}

	st, err := store.NewSQLiteStore(cmd.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	token, err := backend.GenerateToken(cmd.Secret, cmd.User, model.UserType(cmd.UserType))
	if err != nil {
		return err
	}
	fmt.Printf("Development token for %s (valid 24h):\n\n  %s\n\n", cmd.User, token)
	fmt.Printf("Log in with:\n\n  bizdesk login --token %s --user %s --user-type %s\n\n", token, cmd.User, cmd.UserType)

	srv := &http.Server{
		Addr:              cmd.Addr,
		Handler:           backend.NewServer(st, cmd.Secret).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("development backend listening on %s", cmd.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}
