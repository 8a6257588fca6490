package ledger

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatCFA renders an amount without decimals, thousands grouped by spaces.
func FormatCFA(amount float64) string {
	grouped := humanize.Comma(int64(math.Round(amount)))
	return strings.ReplaceAll(grouped, ",", " ") + " FCFA"
}
