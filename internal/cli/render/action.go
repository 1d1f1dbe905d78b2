package render

import (
	"fmt"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/daoservice/govsync/internal/usecase"
)

var titleCaser = cases.Title(language.English)

// ActionRenderer renders the outcome of a governance action
type ActionRenderer struct {
	out io.Writer
}

// NewActionRenderer creates a new action renderer
func NewActionRenderer(out io.Writer) *ActionRenderer {
	return &ActionRenderer{out: out}
}

// Render implements Renderer
func (r *ActionRenderer) Render(res *usecase.ActionResult) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%s confirmed in block %d", titleCaser.String(string(res.Action)), res.BlockNumber)))
	fmt.Fprintf(r.out, "  Tx:        %s\n", res.TxHash)
	fmt.Fprintf(r.out, "  Gas used:  %d\n", res.GasUsed)
	if res.ProposalID != "" {
		fmt.Fprintf(r.out, "  Proposal:  %s\n", idStyle.Sprint(res.ProposalID))
	}
	if res.DescriptionHash != "" {
		fmt.Fprintf(r.out, "  Desc hash: %s\n", res.DescriptionHash)
	}
	if res.Delegatee != "" {
		fmt.Fprintf(r.out, "  Delegatee: %s\n", addressStyle.Sprint(res.Delegatee))
	}
	if res.Transfer != nil {
		fmt.Fprintf(r.out, "  Transfer:  %s tokens to %s\n", res.Transfer.Amount, addressStyle.Sprint(res.Transfer.Recipient))
	}
	return nil
}
