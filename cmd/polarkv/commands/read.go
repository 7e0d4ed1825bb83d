package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laekov/polarkv/pkg/kv/engine"
)

var readCmd = &cobra.Command{
	Use:   "read <key>",
	Short: "Read a single record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		value, err := e.Read([]byte(args[0]))
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				fmt.Println("NOT_FOUND")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Println(string(value))
		return nil
	},
}
