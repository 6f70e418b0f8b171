// Package commands wires the time tracker's command line.
package commands

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// New builds the root command.
func New() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "timetracker",
		Short: "Personal time tracker delivered as a Telegram bot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml); environment variables take precedence")

	AddCommands(cmd, &configPath)
	return cmd
}

func AddCommands(topLevel *cobra.Command, configPath *string) {
	addServe(topLevel, configPath)
	addMigrate(topLevel, configPath)
	addReport(topLevel, configPath)
}

func newLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
