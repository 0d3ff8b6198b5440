package main

import (
	"os"
	"strings"

	"github.com/go-go-golems/rehearsal/cmd/rehearsal/cmds"
	"github.com/go-go-golems/rehearsal/pkg/settings"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rehearsal",
	Short: "rehearsal grows and searches mock interview reply trees",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return initLogger()
	},
	SilenceUsage: true,
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}

	return InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func initConfig(configPath string) error {
	// .env is optional, it usually only carries OPENAI_API_KEY
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not load .env")
	}

	if err := settings.ConfigureViper(viper.GetViper(), configPath); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	// this still won't pick up on --verbose to show debug logging when the commands
	// are parsed, but at least it will configure it based on the config file
	if err := initLogger(); err != nil {
		return err
	}

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")
	return nil
}

func main() {
	// subcommands with their own PersistentPreRunE still initialize logging
	cobra.EnableTraverseRunHooks = true

	rootCmd.PersistentFlags().String("config", "", "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json), text on a terminal by default")
	rootCmd.PersistentFlags().String("log-file", "", "Also log to this file, rotated")
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log the caller")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Shortcut for --log-level debug")

	// --config has to be known before cobra parses the rest
	configPath := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		} else if strings.HasPrefix(arg, "--config=") {
			configPath = strings.TrimPrefix(arg, "--config=")
		}
	}
	if err := initConfig(configPath); err != nil {
		log.Error().Err(err).Msg("Could not initialize configuration")
		os.Exit(1)
	}

	rootCmd.AddCommand(
		cmds.NewGenerateCommand(),
		cmds.NewSearchCommand(),
		cmds.NewShowCommand(),
		cmds.NewFollowUpCommand(),
		cmds.NewServeCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
