package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wignn/media-tools/internal/runstore"
	"github.com/wignn/media-tools/internal/tool"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
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

	report := tool.DefaultBinaries().DependencyStatus()
	stateWritable := stateDirWritable(dir)

	if *jsonOut {
		return printJSON(map[string]any{
			"state_dir":          dir,
			"state_dir_writable": stateWritable,
			"dependencies":       report,
		})
	}

	fmt.Printf("state dir: %s (writable: %v)\n", dir, stateWritable)
	printDep("yt-dlp", report.YTDLPFound, report.YTDLPPath, "required for downloads and clips")
	printDep("ffmpeg", report.FFmpegFound, report.FFmpegPath, "required for conversion and format merging")
	printDep("realesrgan-ncnn-vulkan", report.UpscalerFound, report.UpscalerPath, "optional, needed only for enhance jobs")

	if err := tool.DefaultBinaries().CheckDependencies(); err != nil {
		return err
	}
	fmt.Println("all required tools found")
	return nil
}

func printDep(name string, found bool, path, note string) {
	if found {
		fmt.Printf("  ok      %-24s %s\n", name, path)
		return
	}
	fmt.Printf("  missing %-24s %s\n", name, note)
}

func stateDirWritable(dir string) bool {
	if err := runstore.Mkdir(dir); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}
