package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cverag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cverag configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that asks for the corpus location, the model provider and the embedder, and writes a .cverag.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
