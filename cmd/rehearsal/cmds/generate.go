package cmds

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-go-golems/rehearsal/pkg/chat"
	"github.com/go-go-golems/rehearsal/pkg/events"
	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewGenerateCommand() *cobra.Command {
	var (
		size   int
		output string
		seed   int64
		fake   bool
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "generate [start-question]",
		Short: "Grow a reply tree from a start question and save it as JSON",
		Long: "Grow a reply tree from a start question and save it as JSON.\n" +
			"Without a start question one of the built-in opening questions is picked with --seed.",
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"model":              "chat.model",
				"max-context-tokens": "chat.max-context-tokens",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			generator, err := newGenerator(s, fake)
			if err != nil {
				return err
			}
			embedder, err := newEmbedder(s, fake)
			if err != nil {
				return err
			}

			if output == "" {
				output = time.Now().Format("20060102150405") + ".json"
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed))
			var question string
			if len(args) > 0 {
				question = args[0]
			} else {
				question = chat.RandomStartQuestion(rng)
			}
			log.Info().
				Str("output", output).
				Int("size", size).
				Int64("seed", seed).
				Str("question", question).
				Msg("Generating reply tree")

			root, err := growWithProgress(cmd.Context(), question, size, generator, embedder, rng)
			if err != nil {
				return err
			}

			if err := replytree.SaveToFile(output, root); err != nil {
				return err
			}
			log.Info().Str("output", output).Int("replies", root.Size()).Msg("Saved reply tree")

			if !quiet {
				return replytree.Fprint(os.Stdout, root)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 100, "Number of replies in the tree, root included")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <timestamp>.json)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for picking the node to reply to")
	cmd.Flags().BoolVar(&fake, "fake", false, "Use scripted replies and hash embeddings, no API calls")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the tree")
	cmd.Flags().String("model", "", "Chat completion model")
	cmd.Flags().Int("max-context-tokens", 0, "Token budget for the transcript, 0 for none")

	return cmd
}

// growWithProgress runs Grow while a second goroutine logs the growth events
// it publishes on an in-process watermill pub/sub.
func growWithProgress(
	ctx context.Context,
	question string,
	size int,
	generator replytree.Generator,
	embedder replytree.Embedder,
	rng *rand.Rand,
) (*replytree.Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pubSub := events.NewGoChannel(viper.GetString("log-level") == "trace")

	messages, err := pubSub.Subscribe(ctx, events.GrowthTopic)
	if err != nil {
		return nil, err
	}

	var root *replytree.Reply
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for msg := range messages {
			e, err := events.ParseGrowthEvent(msg.Payload)
			msg.Ack()
			if err != nil {
				continue
			}
			logGrowthEvent(e)
		}
		return nil
	})
	eg.Go(func() error {
		defer func() {
			_ = pubSub.Close()
		}()
		var err error
		root, err = replytree.Grow(ctx, question, size, generator, embedder,
			replytree.WithRand(rng),
			replytree.WithSink(events.NewWatermillSink(pubSub, events.GrowthTopic)),
		)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return root, nil
}

func logGrowthEvent(e events.GrowthEvent) {
	switch e.Type {
	case events.EventTypeGrowStart:
		log.Info().Str("seed", e.Seed).Int("target", e.TargetSize).Msg("Growth started")
	case events.EventTypeReplyAppended:
		log.Info().
			Str("progress", fmt.Sprintf("%d/%d", e.Size, e.TargetSize)).
			Str("role", e.Role).
			Str("text", e.Text).
			Msg("Reply appended")
	case events.EventTypeGrowDone:
		log.Info().Int("size", e.Size).Msg("Growth done")
	}
}
