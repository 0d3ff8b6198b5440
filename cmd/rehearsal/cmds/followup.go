package cmds

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/go-go-golems/rehearsal/pkg/followup"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewFollowUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Manage expected responses and their follow-up questions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{"db": "followup-db"})
		},
	}
	cmd.PersistentFlags().String("db", "", "SQLite database file")

	cmd.AddCommand(newFollowUpAddCommand(), newFollowUpGetCommand())
	return cmd
}

func openStore() (*followup.Store, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("db", s.FollowUpDB).Msg("Opening follow-up store")
	return followup.Open(s.FollowUpDB)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newFollowUpAddCommand() *cobra.Command {
	var questions []string

	cmd := &cobra.Command{
		Use:   "add <expected-response>",
		Short: "Store an expected response with follow-up questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			created, err := store.Create(cmd.Context(), args[0], questions)
			if err != nil {
				return err
			}
			return printJSON(created)
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Follow-up question, repeatable")
	return cmd
}

func newFollowUpGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <response-id>",
		Short: "Print a stored response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid response id %q", args[0])
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			resp, err := store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}
