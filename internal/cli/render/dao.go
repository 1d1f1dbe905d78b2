package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/daoservice/govsync/internal/domain/models"
)

// DAORenderer renders DAOs
type DAORenderer struct {
	out io.Writer
}

// NewDAORenderer creates a new DAO renderer
func NewDAORenderer(out io.Writer) *DAORenderer {
	return &DAORenderer{out: out}
}

// RenderList renders the DAO table
func (r *DAORenderer) RenderList(daos []*models.DAO) error {
	if len(daos) == 0 {
		fmt.Fprintln(r.out, "No DAOs registered")
		return nil
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{
		headerStyle.Sprint("ID"),
		headerStyle.Sprint("NAME"),
		headerStyle.Sprint("GOVERNOR"),
		headerStyle.Sprint("TOKEN"),
		headerStyle.Sprint("CREATED"),
	})
	for _, d := range daos {
		t.AppendRow(table.Row{
			d.ID,
			idStyle.Sprint(d.Name),
			addressStyle.Sprint(d.GovernorAddress),
			addressStyle.Sprint(d.TokenAddress),
			timestampStyle.Sprint(d.CreatedAt.Local().Format("2006-01-02 15:04")),
		})
	}
	t.Render()
	return nil
}

// RenderDAO renders one DAO with its proposals
func (r *DAORenderer) RenderDAO(d *models.DAO) error {
	fmt.Fprintf(r.out, "%s %s\n", labelStyle.Sprint("DAO:"), idStyle.Sprint(d.Name))
	fmt.Fprintf(r.out, "  ID:          %s\n", d.ID)
	fmt.Fprintf(r.out, "  Description: %s\n", d.Description)
	fmt.Fprintf(r.out, "  Creator:     %s\n", addressStyle.Sprint(d.Creator))
	fmt.Fprintf(r.out, "  Governor:    %s\n", addressStyle.Sprint(d.GovernorAddress))
	fmt.Fprintf(r.out, "  Token:       %s\n", addressStyle.Sprint(d.TokenAddress))
	fmt.Fprintf(r.out, "  Treasury:    %s\n", addressStyle.Sprint(d.Treasury))
	fmt.Fprintf(r.out, "  Created:     %s\n", timestampStyle.Sprint(d.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	for k, v := range d.Metadata {
		fmt.Fprintf(r.out, "  %s: %v\n", k, v)
	}
	fmt.Fprintln(r.out)

	proposals := make([]*models.Proposal, 0, len(d.Proposals))
	for i := range d.Proposals {
		proposals = append(proposals, &d.Proposals[i])
	}
	return renderProposalTable(r.out, proposals)
}
