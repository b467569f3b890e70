package supervisor

import "os"

// minArtifactBytes separates real media output from error pages and
// empty placeholder files the tools sometimes leave behind.
const minArtifactBytes = 1024

func OutputArtifactValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > minArtifactBytes
}
