package cmds

import (
	"os"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <tree.json>",
		Short: "Print a saved reply tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := replytree.LoadFromFile(args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "text":
				return replytree.Fprint(os.Stdout, root)
			case "json":
				data, err = replytree.MarshalIndent(root)
			case "yaml":
				data, err = replytree.MarshalYAML(root)
			default:
				return errors.Errorf("unknown format %q (text, json, yaml)", format)
			}
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	return cmd
}
