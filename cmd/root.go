package cmd

import (
	"fmt"
	"os"

	configs "go_request_guard/internal/infra/config"
	"go_request_guard/utils"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	configPath  string
	environment string
)

var rootCmd = &cobra.Command{
	Use:   "request-guard",
	Short: "CORS and header policy gateway for payment APIs",
	Long: `request-guard evaluates every inbound request against a CORS policy and a
header validation policy before it reaches the payment API. Rejected requests
are answered directly; allowed ones are forwarded with the recommended
security headers.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the guard YAML config (default: $GUARD_CONFIG_PATH or guard.<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "Environment preset: development, production or test (default: $GUARD_ENV)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("request-guard v%s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the config the same way for every subcommand; flags win over the environment.
func loadConfig() (*configs.GuardConfig, error) {
	if configPath != "" {
		os.Setenv(configs.EnvConfigPath, configPath)
	}
	if environment != "" {
		os.Setenv(configs.EnvGuardEnv, environment)
	}
	cfg, err := configs.LoadGuardConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// 日志文件路径只在 logger 首次初始化时生效
	if cfg.Log.Path != "" && os.Getenv(utils.EnvLogPath) == "" {
		os.Setenv(utils.EnvLogPath, cfg.Log.Path)
	}
	if cfg.Log.Level != "" {
		if err := utils.SetLevel(cfg.Log.Level); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
