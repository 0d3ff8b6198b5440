package cmds

import (
	"fmt"

	"github.com/go-go-golems/rehearsal/pkg/search"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewSearchCommand() *cobra.Command {
	var (
		k               int
		onlyCandidate   bool
		onlyInterviewer bool
		withScores      bool
		fake            bool
	)

	cmd := &cobra.Command{
		Use:   "search <tree.json> <query>",
		Short: "Find the replies most similar to a query in a saved reply tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := search.FilterFromFlags(onlyCandidate, onlyInterviewer)
			if err != nil {
				return err
			}
			s, err := loadSettings()
			if err != nil {
				return err
			}
			embedder, err := newEmbedder(s, fake)
			if err != nil {
				return err
			}
			searcher, err := search.NewSearcher(embedder, s.SearchCacheSize)
			if err != nil {
				return err
			}

			ix, err := searcher.Index(args[0])
			if err != nil {
				return err
			}
			if ix.MixedNorms(0.01) {
				log.Warn().Msg("Embeddings have different magnitudes, dot product ranking is not cosine ranking")
			}

			hits, err := searcher.SearchHits(cmd.Context(), args[0], args[1], k, filter)
			if err != nil {
				return err
			}
			for _, h := range hits {
				if withScores {
					fmt.Printf("%.4f\t%s\n", h.Score, h.Reply)
				} else {
					fmt.Println(h.Reply)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "size", "k", 5, "Number of results")
	cmd.Flags().BoolVar(&onlyCandidate, "only-candidate", false, "Only return candidate utterances")
	cmd.Flags().BoolVar(&onlyInterviewer, "only-interviewer", false, "Only return interviewer utterances")
	cmd.Flags().BoolVar(&withScores, "scores", false, "Print the score of each result")
	cmd.Flags().BoolVar(&fake, "fake", false, "Embed the query with the offline hash provider")

	return cmd
}
