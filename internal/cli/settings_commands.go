package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/wignn/media-tools/internal/settings"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	stateDir := fs.String("state-dir", "", "state directory (default: user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := resolveStateDir(*stateDir)
	if err != nil {
		return err
	}
	path := settings.DefaultPath(dir)
	cfg, err := settings.Load(path)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"settings_path": path,
			"settings":      cfg,
		})
	}
	fmt.Printf("settings: %s\n", path)
	fmt.Printf("download-dir: %s\n", cfg.DownloadDir)
	fmt.Printf("rate-limit-kib: %d\n", cfg.RateLimitKiB)
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	stateDir := fs.String("state-dir", "", "state directory (default: user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		printSettingsUsage()
		return errors.New("settings set expects <key> <value>")
	}

	dir, err := resolveStateDir(*stateDir)
	if err != nil {
		return err
	}
	path := settings.DefaultPath(dir)
	cfg, err := settings.Load(path)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(rest[0])
	if err := cfg.Set(key, rest[1]); err != nil {
		return err
	}
	if err := settings.Save(path, cfg); err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"settings_path": path,
			"settings":      cfg,
		})
	}
	value, _ := cfg.Get(key)
	fmt.Printf("updated %s = %s\n", key, value)
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--json]")
	fmt.Println("  settings set <key> <value>")
	fmt.Println()
	fmt.Printf("keys: %s\n", strings.Join(settings.Keys(), ", "))
}
