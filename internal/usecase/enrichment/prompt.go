package enrichment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

const systemPrompt = `You classify lower middle market acquisition targets for a private equity rollup team.
Reply with a single JSON object and nothing else, using exactly these keys:
"business_strategy", "business_strategy_confidence", "growth_stage", "growth_stage_confidence".
Confidences are numbers between 0 and 1. Use null for an attribute you cannot infer.`

var growthStages = []candidate.GrowthStage{
	candidate.GrowthEarly,
	candidate.GrowthGrowth,
	candidate.GrowthMature,
	candidate.GrowthDeclining,
}

func buildPrompt(rec *candidate.Record) string {
	var b strings.Builder

	strategies := candidate.Strategies()
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	stages := make([]string, len(growthStages))
	for i, g := range growthStages {
		stages[i] = string(g)
	}

	fmt.Fprintf(&b, "Allowed business_strategy values: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Allowed growth_stage values: %s\n\n", strings.Join(stages, ", "))
	b.WriteString("Deal:\n")
	writeLine(&b, "Title", rec.Title)
	writeLine(&b, "Industry", rec.Industry)
	writeLine(&b, "Location", rec.CompanyLocation)
	writeLine(&b, "Revenue", number(rec.Revenue))
	writeLine(&b, "EBITDA", number(rec.EBITDA))
	writeLine(&b, "EBITDA margin %", number(rec.EBITDAMargin))
	writeLine(&b, "Asking price", number(rec.AskingPrice))
	writeLine(&b, "Caption", rec.DealCaption)
	writeLine(&b, "Description", rec.Description)
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString("- ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func number(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
