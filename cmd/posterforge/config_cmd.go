package main

import (
	"fmt"

	"github.com/gnemet/PosterForge/internal/config"
	"github.com/gnemet/PosterForge/internal/photoshop"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var setPhotoshopCmd = &cobra.Command{
	Use:   "set-photoshop PATH",
	Short: "Store the Photoshop executable path in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := photoshop.ValidateExecutable(path); err != nil {
			logger.Warn("Photoshop path looks invalid", zap.String("path", path), zap.Error(err))
		}
		if err := config.SavePhotoshopPath(configFile, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved Photoshop path: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(setPhotoshopCmd)
	rootCmd.AddCommand(configCmd)
}
