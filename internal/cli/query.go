package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

var (
	queryK        int
	queryBudget   int
	querySeverity string
	querySince    string
	queryUntil    string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about the ingested logs",
	Long: `Embeds the question, retrieves the most similar log chunks from the
vector store, and synthesizes an answer over them. Retrieval can be narrowed
by severity and time window; the filters match chunks whose record range
overlaps the window.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "top", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().IntVar(&queryBudget, "context-budget", 0, "max context characters sent to the model (default from config)")
	queryCmd.Flags().StringVar(&querySeverity, "severity", "", "only chunks containing this severity (DEBUG, INFO, WARN, ERROR)")
	queryCmd.Flags().StringVar(&querySince, "since", "", "only chunks overlapping [since, ...] (RFC3339 or YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryUntil, "until", "", "only chunks overlapping [..., until] (RFC3339 or YYYY-MM-DD)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer and sources as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := buildQueryFilter()
	if err != nil {
		return err
	}

	d, err := buildDeps(false)
	if err != nil {
		return err
	}
	defer d.close()

	if queryK > 0 {
		d.cfg.Query.K = queryK
	}
	if queryBudget > 0 {
		d.cfg.Query.ContextBudget = queryBudget
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	answer, err := newQueryService(d).Ask(ctx, args[0], filter)
	if err != nil {
		return err
	}

	if queryJSON {
		out := struct {
			Answer    string `json:"answer"`
			NoResults bool   `json:"no_results"`
			Sources   []struct {
				Path  string  `json:"path"`
				Chunk int     `json:"chunk"`
				Score float64 `json:"score"`
			} `json:"sources"`
		}{Answer: answer.Text, NoResults: answer.NoResults}
		for _, s := range answer.Sources {
			out.Sources = append(out.Sources, struct {
				Path  string  `json:"path"`
				Chunk int     `json:"chunk"`
				Score float64 `json:"score"`
			}{s.Path, s.Seq, s.Score})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, s := range answer.Sources {
			line := fmt.Sprintf("  %s (chunk %d, score %.2f)", s.Path, s.Seq, s.Score)
			if !s.TimeFrom.IsZero() {
				line += fmt.Sprintf(", %s to %s",
					s.TimeFrom.Format(time.RFC3339), s.TimeTo.Format(time.RFC3339))
			}
			cmd.Println(line)
		}
	}
	return nil
}

func buildQueryFilter() (*vectorstore.Filter, error) {
	filter := &vectorstore.Filter{}

	if querySeverity != "" {
		switch strings.ToUpper(strings.TrimSpace(querySeverity)) {
		case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
			filter.Severity = string(domain.ParseSeverity(querySeverity))
		default:
			return nil, fmt.Errorf("unknown severity %q (want DEBUG, INFO, WARN or ERROR)", querySeverity)
		}
	}

	var err error
	if filter.Since, err = parseTimeFlag(querySince); err != nil {
		return nil, fmt.Errorf("--since: %w", err)
	}
	if filter.Until, err = parseTimeFlag(queryUntil); err != nil {
		return nil, fmt.Errorf("--until: %w", err)
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return nil, fmt.Errorf("--until is before --since")
	}

	if filter.IsEmpty() {
		return nil, nil
	}
	return filter, nil
}

func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q (want RFC3339 or YYYY-MM-DD)", s)
}
