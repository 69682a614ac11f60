// Command learnctl is the operator tool for a LearnCode deployment. It
// inspects course content and exercises, issues bearer tokens and manages
// stored provider credentials.
package main

import (
	"fmt"
	"os"

	"github.com/atinyakov/learncode/internal/config"
	"github.com/atinyakov/learncode/internal/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	configPath string
	envFile    string

	opts *config.Options
	log  *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "learnctl",
	Short: "Operator tool for LearnCode",
	Long: `learnctl reads the same configuration as the server (config file,
.env file and environment) and works directly on its content directory
and database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		o := config.Defaults()
		o.Config = configPath
		o.EnvFile = envFile
		if err := config.Load(o); err != nil {
			return err
		}
		opts = o

		level := "warn"
		if verbose {
			level = "debug"
		}
		zl := logger.New()
		if err := zl.Init(level); err != nil {
			return err
		}
		log = zl.Log
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to an optional .env file")
}

func main() {
	Execute()
}
