package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <key> <value>",
	Short: "Write a single record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Write([]byte(args[0]), []byte(args[1])); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}
