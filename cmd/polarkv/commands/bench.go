package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	benchCount   int
	benchValSize int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a short write/read throughput smoke test",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		// Namespace this run's keys so repeated bench invocations against
		// the same database don't collide.
		prefix := uuid.NewString()
		value := make([]byte, benchValSize)

		start := time.Now()
		for i := 0; i < benchCount; i++ {
			key := fmt.Sprintf("%s-%d", prefix, i)
			if err := e.Write([]byte(key), value); err != nil {
				return fmt.Errorf("bench write %d: %w", i, err)
			}
		}
		writeElapsed := time.Since(start)

		start = time.Now()
		for i := 0; i < benchCount; i++ {
			key := fmt.Sprintf("%s-%d", prefix, i)
			if _, err := e.Read([]byte(key)); err != nil {
				return fmt.Errorf("bench read %d: %w", i, err)
			}
		}
		readElapsed := time.Since(start)

		fmt.Printf("wrote %d records in %s (%.0f writes/s)\n", benchCount, writeElapsed, float64(benchCount)/writeElapsed.Seconds())
		fmt.Printf("read  %d records in %s (%.0f reads/s)\n", benchCount, readElapsed, float64(benchCount)/readElapsed.Seconds())
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchCount, "count", 10000, "number of records to write then read")
	benchCmd.Flags().IntVar(&benchValSize, "value-size", 100, "value size in bytes")
}
