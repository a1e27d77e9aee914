package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders provider rows as CSV. Amounts are in base units.
func RenderCSV(rows []ProviderRow) string {
	var sb strings.Builder

	sb.WriteString("provider,purchases,volume,payout,withdrawn\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s\n",
			r.Provider,
			r.Purchases,
			r.Volume,
			r.Payout,
			r.Withdrawn,
		))
	}

	return sb.String()
}

// RenderSegmentsCSV renders segment rows as CSV. Amounts are in base units.
func RenderSegmentsCSV(rows []SegmentRow) string {
	var sb strings.Builder

	sb.WriteString("segment_id,provider,type,purchases,volume\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%s\n",
			r.SegmentID,
			r.Provider,
			r.Type,
			r.Purchases,
			r.Volume,
		))
	}

	return sb.String()
}
