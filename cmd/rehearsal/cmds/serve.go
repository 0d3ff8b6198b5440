package cmds

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/rehearsal/pkg/followup"
	"github.com/go-go-golems/rehearsal/pkg/search"
	"github.com/go-go-golems/rehearsal/pkg/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	var fake bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the follow-up API and the interview websocket",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"listen": "server.listen",
				"tree":   "server.tree",
				"db":     "followup-db",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := followup.Open(s.FollowUpDB)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			options := []server.ResponderOption{server.WithFollowUps(store)}
			if s.Server.Tree != "" {
				embedder, err := newEmbedder(s, fake)
				if err != nil {
					return err
				}
				searcher, err := search.NewSearcher(embedder, s.SearchCacheSize)
				if err != nil {
					return err
				}
				// fail early on a broken tree file
				if _, err := searcher.Index(s.Server.Tree); err != nil {
					return err
				}
				options = append(options, server.WithTree(s.Server.Tree, searcher, embedder))
			}

			srv := &http.Server{
				Addr:              s.Server.Listen,
				Handler:           server.NewServer(store, server.NewResponder(options...)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				log.Info().Str("listen", s.Server.Listen).Str("tree", s.Server.Tree).Msg("Serving")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				log.Info().Msg("Shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return eg.Wait()
		},
	}

	cmd.Flags().String("listen", "", "Address to listen on")
	cmd.Flags().String("tree", "", "Reply tree used when no stored follow-up matches")
	cmd.Flags().String("db", "", "SQLite database file")
	cmd.Flags().BoolVar(&fake, "fake", false, "Embed utterances with the offline hash provider")
	return cmd
}
