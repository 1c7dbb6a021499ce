package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fabricguide",
	Short: "Interactive Lestel Fabric Blueprint with a built-in guide",
	Long: `fabricguide serves the Lestel Fabric Blueprint: the platform architecture,
the seven-step data timeline and a chat guide that answers questions either
from a built-in rule table or through an external language model.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $FABRICGUIDE_CONFIG or config.yaml)")
}
