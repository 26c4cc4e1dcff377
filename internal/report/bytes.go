package report

import (
	"math"
	"strconv"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with 1024-based units, rounded to at most 2 decimals.
// Counts <= 0 are rendered in B.
func FormatBytes(size int64) string {
	step := 0
	for v := size; v >= 1024 && step < len(units)-1; v /= 1024 {
		step++
	}
	value := float64(size) / math.Pow(1024, float64(step))
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[step]
}
