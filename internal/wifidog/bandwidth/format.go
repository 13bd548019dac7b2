// internal/wifidog/bandwidth/format.go
package bandwidth

import (
	"strconv"
	"strings"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with a 1024-based unit, e.g. 1536 -> "1.5 KB".
func FormatBytes(n int64) string {
	sign := ""
	value := float64(n)
	if n < 0 {
		sign = "-"
		value = -value
	}
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	s := strconv.FormatFloat(value, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return sign + s + " " + byteUnits[unit]
}
