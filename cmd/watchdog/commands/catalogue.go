package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
)

var catalogueFile string

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Validate and print the relationship catalogue",
	Long: `Load the catalogue (--file, else catalogue.path from config, else the built-in
one), validate it and print it as a tree. Exits non-zero on a validation error.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			cat *catalogue.Catalogue
			err error
		)
		if catalogueFile != "" {
			cat, err = catalogue.LoadFile(catalogueFile)
		} else {
			cfg, cfgErr := loadConfig()
			if cfgErr != nil {
				return cfgErr
			}
			cat, err = loadCatalogue(cfg)
		}
		if err != nil {
			return err
		}
		if err := cat.Render(cmd.OutOrStdout()); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("%d rules", cat.Len())))
		return err
	},
}

func init() {
	catalogueCmd.Flags().StringVarP(&catalogueFile, "file", "f", "", "Catalogue YAML file to validate")
}
