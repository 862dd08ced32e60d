package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "handchord",
	Short: "Gesture-played chord instrument",
	Long: `Handchord plays chords from hand positions seen by the webcam.
Configuration is read from HANDCHORD_CONFIG (YAML) and HANDCHORD_* variables.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
