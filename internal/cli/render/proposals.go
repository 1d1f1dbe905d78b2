package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// ProposalListRenderer renders a DAO's proposals with per-state counts
type ProposalListRenderer struct {
	out io.Writer
}

// NewProposalListRenderer creates a new proposal list renderer
func NewProposalListRenderer(out io.Writer) *ProposalListRenderer {
	return &ProposalListRenderer{out: out}
}

// Render implements Renderer
func (r *ProposalListRenderer) Render(result *usecase.ProposalListResult) error {
	fmt.Fprintf(r.out, "%s %s (%s)\n\n", labelStyle.Sprint("DAO:"), idStyle.Sprint(result.DAO.Name), result.DAO.GovernorAddress)
	if err := renderProposalTable(r.out, result.Proposals); err != nil {
		return err
	}

	counts := lo.FilterMap(models.AllProposalStates, func(s models.ProposalState, _ int) (string, bool) {
		n := result.Counts[s]
		return fmt.Sprintf("%s: %d", FormatState(s), n), n > 0
	})
	if len(counts) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", strings.Join(counts, "  "))
	}
	return nil
}

func renderProposalTable(out io.Writer, proposals []*models.Proposal) error {
	if len(proposals) == 0 {
		fmt.Fprintln(out, "No proposals found")
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{
		headerStyle.Sprint("PROPOSAL"),
		headerStyle.Sprint("STATE"),
		headerStyle.Sprint("TYPE"),
		headerStyle.Sprint("DESCRIPTION"),
		headerStyle.Sprint("UPDATED"),
	})
	for _, p := range proposals {
		t.AppendRow(table.Row{
			shortHash(p.ProposalID),
			FormatState(p.State),
			p.ActionType,
			truncate(p.Description, 48),
			timestampStyle.Sprint(p.UpdatedAt.Local().Format("2006-01-02 15:04")),
		})
	}
	t.Render()
	return nil
}

// ProposalRenderer renders one proposal with its eligibility table
type ProposalRenderer struct {
	out io.Writer
}

// NewProposalRenderer creates a new proposal renderer
func NewProposalRenderer(out io.Writer) *ProposalRenderer {
	return &ProposalRenderer{out: out}
}

// Render implements Renderer
func (r *ProposalRenderer) Render(d *usecase.ProposalDetails) error {
	p := d.Proposal
	fmt.Fprintf(r.out, "%s %s\n", labelStyle.Sprint("Proposal:"), idStyle.Sprint(p.ProposalID))
	fmt.Fprintf(r.out, "  DAO:              %s\n", d.DAO.Name)
	fmt.Fprintf(r.out, "  State:            %s\n", FormatState(p.State))
	if d.LedgerState != nil && *d.LedgerState != p.State {
		fmt.Fprintf(r.out, "  Ledger state:     %s %s\n", FormatState(*d.LedgerState),
			FormatWarning("cache is stale, run `govsync proposal sync`"))
	}
	fmt.Fprintf(r.out, "  Description:      %s\n", p.Description)
	fmt.Fprintf(r.out, "  Description hash: %s\n", p.DescriptionHash)
	if p.ActionType != "" {
		fmt.Fprintf(r.out, "  Action type:      %s\n", p.ActionType)
	}
	if d.Transfer != nil {
		fmt.Fprintf(r.out, "  Transfer:         %s tokens to %s\n", d.Transfer.Amount, addressStyle.Sprint(d.Transfer.Recipient))
	}
	for i := range p.Targets {
		fmt.Fprintf(r.out, "  Call %d:           %s value=%s data=%s\n", i, p.Targets[i], p.Values[i], shortHash(p.Calldatas[i]))
	}
	fmt.Fprintf(r.out, "  Created:          %s\n", timestampStyle.Sprint(p.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(r.out, "  Updated:          %s\n\n", timestampStyle.Sprint(p.UpdatedAt.Local().Format("2006-01-02 15:04:05")))

	t := newTable(r.out)
	t.AppendHeader(table.Row{headerStyle.Sprint("ACTION"), headerStyle.Sprint("ALLOWED"), headerStyle.Sprint("REASON")})
	for _, e := range d.Eligibility {
		allowed := allowedStyle.Sprint("yes")
		if !e.Allowed {
			allowed = blockedStyle.Sprint("no")
		}
		t.AppendRow(table.Row{string(e.Action), allowed, e.Reason})
	}
	t.Render()
	return nil
}

// TickRenderer renders one-shot sync results
type TickRenderer struct {
	out io.Writer
}

// NewTickRenderer creates a new sync result renderer
func NewTickRenderer(out io.Writer) *TickRenderer {
	return &TickRenderer{out: out}
}

// Render implements Renderer
func (r *TickRenderer) Render(results []*usecase.TickResult) error {
	if len(results) == 0 {
		fmt.Fprintln(r.out, "Nothing to sync, every cached proposal is final")
		return nil
	}
	t := newTable(r.out)
	t.AppendHeader(table.Row{headerStyle.Sprint("PROPOSAL"), headerStyle.Sprint("RESULT"), headerStyle.Sprint("STATE")})
	for _, res := range results {
		state := FormatState(res.Current)
		if res.Outcome == usecase.TickChanged {
			state = fmt.Sprintf("%s → %s", FormatState(res.Previous), FormatState(res.Current))
		}
		outcome := res.Outcome
		if res.Error != "" {
			outcome = blockedStyle.Sprint(outcome)
		}
		t.AppendRow(table.Row{shortHash(res.ProposalID), outcome, state})
	}
	t.Render()
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
