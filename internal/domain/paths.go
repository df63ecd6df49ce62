package domain

import (
	"path/filepath"
	"strings"
)

// DefaultInputSuffix follows the registration site's export naming.
const DefaultInputSuffix = "-RunningLaneTrackChampionships-participants.csv"

// DatedInputPath returns the roster export expected in dir today:
// dir/YYYYMMDD<suffix>.
func DatedInputPath(dir, suffix string) string {
	return filepath.Join(dir, clock.Now().Format("20060102")+suffix)
}

// NormalizedPath is where the converted roster is written next to the input.
// The input itself is never overwritten, so a rerun cannot convert a time twice.
func NormalizedPath(outputDir, inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	return filepath.Join(outputDir, base+"-normalized.csv")
}
