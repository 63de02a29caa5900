package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrissnell/jetcalib/internal/calib"
	"github.com/chrissnell/jetcalib/internal/log"
)

var labelsCmd = &cobra.Command{
	Use:   "labels [label]",
	Short: "List the labels in the calibration registry, or the tables under one label",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Registry == nil {
			return fmt.Errorf("no registry configured in %s", cfgFile)
		}

		reg, err := calib.OpenRegistry(cmd.Context(), cfg.Registry.Driver, cfg.Registry.DSN, log.GetSugaredLogger())
		if err != nil {
			return err
		}
		defer reg.Close()

		var names []string
		if len(args) == 1 {
			names, err = reg.Names(cmd.Context(), args[0])
		} else {
			names, err = reg.Labels(cmd.Context())
		}
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}
