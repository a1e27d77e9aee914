package reporting

import (
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	tokens := func(v math.Int) string { return domain.FormatTokens(v, r.Decimals) }

	sb.WriteString("# Settlement Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
		time.Unix(r.From, 0).UTC().Format(time.RFC3339),
		time.Unix(r.To, 0).UTC().Format(time.RFC3339)))

	sb.WriteString("## Settlement Volume\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Purchases | %d |\n", r.Volume.Purchases))
	sb.WriteString(fmt.Sprintf("| Volume | %s |\n", tokens(r.Volume.Volume)))
	sb.WriteString(fmt.Sprintf("| Provider Payout | %s |\n", tokens(r.Volume.ProviderPayout)))
	sb.WriteString(fmt.Sprintf("| Broker Spread | %s |\n", tokens(r.Volume.BrokerSpread)))
	sb.WriteString(fmt.Sprintf("| Withdrawn | %s |\n", tokens(r.Volume.Withdrawn)))
	sb.WriteString("\n")

	sb.WriteString("## Data Quality\n\n")
	if r.DataQuality.Passed() {
		sb.WriteString("All checks passed.\n\n")
	} else {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Events\n\n")
	if len(r.EventCounts) > 0 {
		sb.WriteString("| Kind | Count |\n")
		sb.WriteString("|------|-------|\n")
		for _, c := range r.EventCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", c.Kind, c.Count))
		}
	} else {
		sb.WriteString("No events in window.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Providers\n\n")
	if len(r.Providers) > 0 {
		sb.WriteString("| Provider | Purchases | Volume | Payout | Withdrawn |\n")
		sb.WriteString("|----------|-----------|--------|--------|-----------|\n")
		for _, p := range r.Providers {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s |\n",
				p.Provider, p.Purchases, tokens(p.Volume), tokens(p.Payout), tokens(p.Withdrawn)))
		}
	} else {
		sb.WriteString("No provider activity.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Segments\n\n")
	if len(r.Segments) > 0 {
		sb.WriteString("| Segment | Provider | Type | Purchases | Volume |\n")
		sb.WriteString("|---------|----------|------|-----------|--------|\n")
		for _, s := range r.Segments {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %s |\n",
				s.SegmentID, s.Provider, s.Type, s.Purchases, tokens(s.Volume)))
		}
	} else {
		sb.WriteString("No segments purchased.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
