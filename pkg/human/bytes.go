// Package human renders raw counters in log-friendly form.
package human

import "fmt"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes converts a byte count into a human readable string.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	idx := 0
	for value >= 1024 && idx < len(byteUnits)-1 {
		value /= 1024
		idx++
	}
	return fmt.Sprintf("%.2f %s", value, byteUnits[idx])
}
