package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default config file",
	Long:        `Writes a default config file to --config or ~/.idsync/idsync.toml.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStandalone: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if initConfig == nil {
			return errors.New("init not configured")
		}
		path, err := initConfig(configPath, initForce)
		if err != nil {
			return err
		}
		cmd.Printf("Config written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
