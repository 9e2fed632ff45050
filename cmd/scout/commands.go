// Path: cmd/scout/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"viral-scout/internal/domain"
	"viral-scout/internal/events"
	"viral-scout/internal/export"
	"viral-scout/internal/service"

	"github.com/spf13/cobra"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, enrich and score videos once",
	Long: `Search, enrich and score videos once.

Flags left unset fall back to the search section of the config.

Examples:
  scout run --keyword "Reddit Cheating" --keyword "AITA Update" --days 3
  scout run --min-views 1000 --max-subs 5000 --save
  scout run --keyword "AITA Update" --save-id dQw4w9WgXcQ
  scout run --csv current_results.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := service.RunRequest{Request: a.service.DefaultRequest()}
		flags := cmd.Flags()
		if flags.Changed("keyword") {
			req.Terms, _ = flags.GetStringArray("keyword")
		}
		if flags.Changed("days") {
			req.Days, _ = flags.GetInt("days")
		}
		if flags.Changed("max-results") {
			req.MaxResults, _ = flags.GetInt("max-results")
		}
		if flags.Changed("region") {
			req.RegionCode, _ = flags.GetString("region")
		}
		if flags.Changed("min-views") {
			req.MinViews, _ = flags.GetInt64("min-views")
		}
		if flags.Changed("max-subs") {
			req.MaxSubscribers, _ = flags.GetInt64("max-subs")
		}
		req.Save, _ = flags.GetBool("save")
		saveIDs, _ := flags.GetStringArray("save-id")
		csvPath, _ := flags.GetString("csv")

		stopProgress := followProgress(a.broker, func(p service.Progress) {
			printStep("Processed %d of %d unique videos", p.Done, p.Total)
		})
		report, err := a.service.Run(cmd.Context(), req)
		stopProgress()
		if err != nil {
			return err
		}

		sum := report.Summary
		printSuccess("Fetched %d filtered results (%d unique of %d hits) in %s",
			sum.Accepted, sum.Unique, sum.Searched, sum.FinishedAt.Sub(sum.StartedAt).Round(100*time.Millisecond))
		if req.Save {
			printStatus("Saved", "%d", sum.Saved)
		}
		if len(report.Items) == 0 {
			printWarning("No results matched the filters (min views / max subscribers).")
		} else {
			printResults(os.Stdout, report.Items)
		}

		missing, err := saveSelected(cmd.Context(), a.service, report.Items, saveIDs)
		if err != nil {
			return err
		}

		if csvPath != "" {
			if err := writeFile(csvPath, func(w io.Writer) error {
				return export.WriteResults(w, report.Items)
			}); err != nil {
				return err
			}
			printSuccess("Wrote %s", csvPath)
		}
		if len(missing) > 0 {
			return fmt.Errorf("not among this run's results: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

// followProgress reports run progress until the returned func is called.
// That func returns once every buffered event has been reported.
func followProgress(broker *events.Broker, report func(service.Progress)) func() {
	progress := broker.Subscribe(service.EventRunProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			if p, ok := ev.Data.(service.Progress); ok {
				report(p)
			}
		}
	}()
	return func() {
		broker.Unsubscribe(progress)
		<-done
	}
}

// saveSelected saves the listed video ids from a run's results one by one
// and returns the ids that were not in the results.
func saveSelected(ctx context.Context, svc *service.Service, items []domain.ScoredItem, ids []string) ([]string, error) {
	byID := make(map[string]domain.ScoredItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	var missing []string
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			printWarning("%s is not among the results; not saved", id)
			missing = append(missing, id)
			continue
		}
		if _, err := svc.SaveItem(ctx, item); err != nil {
			return nil, err
		}
		printSuccess("Saved %s", id)
	}
	return missing, nil
}

func init() {
	runCmd.Flags().StringArray("keyword", nil, "search term (repeatable)")
	runCmd.Flags().Int("days", 0, "only videos published within this many days")
	runCmd.Flags().Int("max-results", 0, "results per keyword (1-50)")
	runCmd.Flags().String("region", "", "two-letter region code")
	runCmd.Flags().Int64("min-views", 0, "minimum view count")
	runCmd.Flags().Int64("max-subs", 0, "maximum channel subscribers")
	runCmd.Flags().Bool("save", false, "merge accepted videos into the history")
	runCmd.Flags().StringArray("save-id", nil, "merge only this accepted video into the history (repeatable)")
	runCmd.Flags().String("csv", "", "write accepted videos to this CSV file")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage saved videos",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved videos by viral score",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.service.History(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, recs)
		}
		printStatus("Total saved videos", "%d", len(recs))
		printHistory(os.Stdout, recs)
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history totals, averages and top terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		top, _ := cmd.Flags().GetInt("top")
		stats, err := a.service.Stats(cmd.Context(), top)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, stats)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <video-id>",
	Short: "Delete a saved video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.DeleteRecord(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var historyUntagCmd = &cobra.Command{
	Use:   "untag <video-id> <term>",
	Short: "Remove one query term from a saved video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.RemoveTerm(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Removed %q from %s", args[1], args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved video",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.service.ClearHistory(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess("Deleted %d saved videos", n)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the saved history as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.service.History(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			return export.WriteHistory(os.Stdout, recs)
		}
		if err := writeFile(out, func(w io.Writer) error { return export.WriteHistory(w, recs) }); err != nil {
			return err
		}
		printSuccess("Wrote %d records to %s", len(recs), out)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Bool("json", false, "print records as JSON")
	historyStatsCmd.Flags().Int("top", 10, "number of top terms and videos")
	historyClearCmd.Flags().Bool("yes", false, "confirm deleting all data")
	historyExportCmd.Flags().String("out", "youtube_saved.csv", `output file, "-" for stdout`)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyUntagCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
}

// --- helpers ---

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResults(w io.Writer, items []domain.ScoredItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tVIEWS\tSUBS\tKEYWORD\tTITLE\tURL")
	for _, it := range items {
		fmt.Fprintf(tw, "%.2f\t%d\t%d\t%s\t%s\t%s\n",
			it.Score, it.Views, it.Subscribers, it.Term, domain.ShortText(it.Title, 60), export.WatchURLPrefix+it.ID)
	}
	tw.Flush()
}

func printHistory(w io.Writer, recs []domain.HistoryRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tVIEWS\tSUBS\tLAST SEEN\tTERMS\tTITLE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.Score(), r.Views, r.Subscribers, r.LastSeen, strings.Join(r.Terms, "; "), domain.ShortText(r.Title, 60))
	}
	tw.Flush()
}
