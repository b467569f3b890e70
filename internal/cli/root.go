package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "submit":
		return runSubmit(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "history":
		return runHistory(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("media-tools: queued media downloads, clips, conversions, and upscales")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  media-tools doctor")
	fmt.Println("  media-tools submit --kind download-audio <url> [<url> ...]")
	fmt.Println("  media-tools watch --kind download-video <url>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  submit    queue jobs and run them to completion")
	fmt.Println("  watch     queue jobs with a live interactive progress view")
	fmt.Println("  history   list or clear the download history")
	fmt.Println("  settings  show/update defaults (download dir, rate limit)")
	fmt.Println("  doctor    check external tool dependencies")
	fmt.Println()
	fmt.Println("Job kinds:")
	fmt.Println("  download-audio   fetch a source and extract mp3 audio")
	fmt.Println("  download-video   fetch a source as mp4 video")
	fmt.Println("  clip             fetch only a time window (--start/--end)")
	fmt.Println("  convert          transcode a local file to mp3")
	fmt.Println("  enhance          upscale a local image")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Jobs run one at a time; failures retry up to 3 times")
}
