// Path: cmd/scout/commands_test.go
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"viral-scout/internal/events"
	"viral-scout/internal/service"
	"viral-scout/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFakeAPI serves one small-channel hit and one big-channel hit for every term.
func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			fmt.Fprint(w, `{"items":[
				{"id":{"videoId":"small1"},"snippet":{"channelId":"chSmall","title":"Small","description":"d","publishedAt":"2026-10-15T10:00:00Z","thumbnails":{"high":{"url":"https://img/small1"}}}},
				{"id":{"videoId":"big1"},"snippet":{"channelId":"chBig","title":"Big","publishedAt":"2026-10-15T11:00:00Z"}}
			]}`)
		case "/videos":
			fmt.Fprint(w, `{"items":[{"id":"small1","statistics":{"viewCount":"4000"}},{"id":"big1","statistics":{"viewCount":"9000000"}}]}`)
		case "/channels":
			fmt.Fprint(w, `{"items":[{"id":"chSmall","statistics":{"subscriberCount":"39"}},{"id":"chBig","statistics":{"subscriberCount":"2000000"}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, apiURL string) string {
	t.Helper()
	content := fmt.Sprintf(`log:
  level: error
database:
  driver: sqlite
  uri: %s
fetcher:
  base_url: %s
  retries: 0
search:
  days: 5
  max_results: 5
  min_views: 100
  max_subscribers: 3000
`, filepath.Join(dir, "scout.db"), apiURL)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	defer resetFlags(rootCmd)
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

// resetFlags puts every flag back to its default so commands can be
// executed more than once in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestRunCommand_SavesAndExports(t *testing.T) {
	noColor = true
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newFakeAPI(t).URL)
	csvPath := filepath.Join(dir, "results.csv")

	err := execute(t, "--config", cfgPath, "run", "--keyword", "cats", "--keyword", "dogs", "--save", "--csv", csvPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "scout.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	recs, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "small1" || recs[0].Views != 4000 || recs[0].Subscribers != 39 {
		t.Fatalf("saved = %+v", recs)
	}
	// First term wins when two queries return the same video.
	if recs[0].Terms.String() != "cats" {
		t.Errorf("terms = %q, want cats", recs[0].Terms.String())
	}

	last, err := store.LastRun(context.Background())
	if err != nil || last == nil || last.Saved != 1 || last.Unique != 2 {
		t.Errorf("last run = %+v, %v", last, err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("opening csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "small1" || rows[1][8] != "100.00" {
		t.Errorf("csv rows = %q", rows)
	}
}

func TestRunCommand_SaveSelected(t *testing.T) {
	noColor = true
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newFakeAPI(t).URL)

	// big1 is filtered out by max_subscribers, so it cannot be saved.
	err := execute(t, "--config", cfgPath, "run", "--keyword", "cats", "--save-id", "small1", "--save-id", "big1")
	if err == nil || !strings.Contains(err.Error(), "big1") || strings.Contains(err.Error(), "small1") {
		t.Fatalf("err = %v, want big1 reported as missing", err)
	}

	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "scout.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	recs, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "small1" || !recs[0].Terms.Has("cats") {
		t.Fatalf("saved = %+v", recs)
	}

	last, err := store.LastRun(context.Background())
	if err != nil || last == nil || last.Saved != 0 {
		t.Errorf("last run = %+v, %v; want Saved 0 without --save", last, err)
	}
}

func TestFollowProgress_DrainsBeforeReturning(t *testing.T) {
	broker := events.NewBroker()
	var got []service.Progress
	stop := followProgress(broker, func(p service.Progress) { got = append(got, p) })

	for i := 1; i <= 3; i++ {
		broker.Publish(service.EventRunProgress, service.Progress{RunID: "r", Done: i * 40, Total: 95})
	}
	stop()

	// stop has joined the reader, so got is safe to read here.
	if len(got) != 3 || got[2].Done != 120 {
		t.Errorf("reported = %+v, want 3 events", got)
	}
}

func TestHistoryClear_RequiresConfirmation(t *testing.T) {
	err := execute(t, "history", "clear")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("err = %v, want confirmation error", err)
	}
}

func TestHistoryUntag_Args(t *testing.T) {
	if err := execute(t, "history", "untag", "only-one-arg"); err == nil {
		t.Error("expected argument count error")
	}
}

func TestUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: redis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := execute(t, "--config", path, "history", "list")
	if err == nil || !strings.Contains(err.Error(), "unknown database driver") {
		t.Errorf("err = %v, want unknown driver", err)
	}
}
