package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amt2283/hunterleaf-go/cmd/groups"
	"github.com/amt2283/hunterleaf-go/cmd/search"
	"github.com/amt2283/hunterleaf-go/cmd/serve"
	"github.com/amt2283/hunterleaf-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hunterleaf",
		Short: "HunterLeaf plant observation lookup",
		Long:  "Aggregates plant observations from iNaturalist, GBIF, Trefle and PlantNet for a location.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		search.Command(settings),
		groups.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}
