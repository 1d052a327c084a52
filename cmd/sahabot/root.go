package main

import (
	"fmt"
	"os"

	"github.com/ergcontrols/sahabot/internal/config"
	"github.com/ergcontrols/sahabot/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sahabot",
	Short: "Sahabot field operations assistant",
	Long:  `Sahabot turns free-text field reports from Slack and Telegram into structured workbook records.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sahabot/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("workbook.path", "", "workbook file path")
	rootCmd.PersistentFlags().String("classifier.provider", config.DefaultClassifierProvider, "classifier provider (anthropic, openai, gemini)")
}
