package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgrep/lograg/internal/generator"
)

var (
	generateCount int
	generateDir   string
	generateSeed  int64
	generateDays  int
)

var generateCmd = &cobra.Command{
	Use:   "generate [date]",
	Short: "Generate synthetic Kubernetes-style log files",
	Long: `Writes synthetic AKS-style log files for testing the pipeline without
a live cluster. Each day becomes one JSON array file with normal traffic and
occasional incident bursts (crash-looping pods, node scale events). The same
seed reproduces the same files. Date defaults to today (UTC).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 2000, "log records per day")
	generateCmd.Flags().StringVarP(&generateDir, "out", "o", "input-logs", "output directory")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "random seed (0 uses the current time)")
	generateCmd.Flags().IntVar(&generateDays, "days", 1, "number of consecutive days to generate")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC()
	if len(args) == 1 {
		var err error
		date, err = time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("date: cannot parse %q (want YYYY-MM-DD)", args[0])
		}
	}
	if generateDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	seed := generateSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := generator.New(seed)

	for i := 0; i < generateDays; i++ {
		day := date.AddDate(0, 0, i)
		path, err := g.GenerateDay(generateDir, day, generateCount)
		if err != nil {
			return err
		}
		cmd.Printf("Generated %d logs for %s -> %s\n", generateCount, day.Format("2006-01-02"), path)
	}
	return nil
}
