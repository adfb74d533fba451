package engine

import (
	"fmt"
	"strings"

	"negotiation-engine/pkg/core/types"
	"negotiation-engine/pkg/core/utils"
)

// renderProposalMarkdown turns a finalized Proposal into the human-readable
// summary carried on the negotiation.finalized event, validated with the
// same Goldmark parser the rest of the codebase uses to sanity-check
// generated Markdown before it is surfaced anywhere.
func renderProposalMarkdown(p types.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Proposal v%d\n\n", p.Version)
	if p.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Summary)
	}
	b.WriteString("| Agent | Role | Responsibility |\n")
	b.WriteString("|---|---|---|\n")
	for _, a := range p.Assignments {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", a.AgentID, a.Role, a.Responsibility)
	}
	if p.TimelineHint != "" {
		fmt.Fprintf(&b, "\n**Timeline:** %s\n", p.TimelineHint)
	}
	if len(p.OpenQuestions) > 0 {
		b.WriteString("\n**Open questions:**\n")
		for _, q := range p.OpenQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	out := utils.CleanMarkdown(b.String())
	if !utils.ValidateMarkdown(out) {
		return p.Summary
	}
	return out
}
