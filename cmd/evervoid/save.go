package main

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/savegame"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Inspect save files",
}

var savePrettyCmd = &cobra.Command{
	Use:   "pretty <file>",
	Short: "Print a save file as indented Value text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := savegame.ReadValue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value.SerializePretty(v))
		return nil
	},
}

var saveHashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Print the state hash of a save file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := loadGameData()
		if err != nil {
			return err
		}
		s, err := savegame.Load(args[0], data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "round %d %s\n", s.Round(), s.Hash())
		return nil
	},
}

var saveConvertCmd = &cobra.Command{
	Use:   "convert <from> <to>",
	Short: "Rewrite a save file, compressing it when <to> ends in " + savegame.CompressedSuffix,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := savegame.ReadValue(args[0])
		if err != nil {
			return err
		}
		return savegame.SaveValue(args[1], v)
	},
}

func init() {
	saveCmd.AddCommand(savePrettyCmd)
	saveCmd.AddCommand(saveHashCmd)
	saveCmd.AddCommand(saveConvertCmd)
}
