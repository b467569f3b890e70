package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wignn/media-tools/internal/history"
)

func runHistory(args []string) error {
	if len(args) == 0 {
		printHistoryUsage()
		return nil
	}
	switch args[0] {
	case "list":
		return runHistoryList(args[1:])
	case "clear":
		return runHistoryClear(args[1:])
	case "help", "-h", "--help":
		printHistoryUsage()
		return nil
	default:
		printHistoryUsage()
		return fmt.Errorf("unknown history subcommand %q", args[0])
	}
}

func openHistoryStore(stateDirFlag string) (*history.Store, error) {
	stateDir, err := resolveStateDir(stateDirFlag)
	if err != nil {
		return nil, err
	}
	return history.Open(context.Background(), historyDBPath(stateDir))
}

func runHistoryList(args []string) error {
	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	stateDir := fs.String("state-dir", "", "state directory (default: user config dir)")
	limit := fs.Int("limit", 0, "show at most N records (0 shows all)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openHistoryStore(*stateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ReadAll(context.Background())
	if err != nil {
		return err
	}
	if *limit > 0 && len(records) > *limit {
		records = records[:*limit]
	}

	if *jsonOut {
		return printJSON(map[string]any{"records": records})
	}
	if len(records) == 0 {
		fmt.Println("no downloads recorded")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-14s  %-9s  %s\n",
			rec.DownloadedAt.Local().Format(time.DateTime),
			rec.Kind,
			humanize.Bytes(uint64(rec.SizeBytes)),
			rec.Title,
		)
		fmt.Printf("%21s-> %s\n", "", rec.OutputPath)
	}
	return nil
}

func runHistoryClear(args []string) error {
	fs := flag.NewFlagSet("history clear", flag.ContinueOnError)
	stateDir := fs.String("state-dir", "", "state directory (default: user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openHistoryStore(*stateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(context.Background())
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"removed": n})
	}
	fmt.Printf("removed %d records\n", n)
	return nil
}

func printHistoryUsage() {
	fmt.Println("history commands:")
	fmt.Println("  history list [--limit N] [--json]")
	fmt.Println("  history clear")
}
