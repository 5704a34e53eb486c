package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LJTian/GozaMadrid/internal/app"
	"github.com/LJTian/GozaMadrid/internal/config"
	"github.com/LJTian/GozaMadrid/internal/logger"
)

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gozactl",
		Short:         "Goza Madrid listings operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (same as CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file (same as ENV_FILE)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newListCommand(opts),
		newGetCommand(opts),
		newWarmCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

// build 按 flag 覆盖环境变量后加载配置并组装组件
func (o *rootOptions) build(cmd *cobra.Command) (*app.App, error) {
	if o.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	if o.envFile != "" {
		if err := os.Setenv("ENV_FILE", o.envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{Level: o.logLevel, OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cmd.Context(), cfg, log, app.Options{})
}
