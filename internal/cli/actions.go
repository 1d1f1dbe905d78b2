package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daoservice/govsync/internal/app"
	"github.com/daoservice/govsync/internal/cli/render"
	"github.com/daoservice/govsync/internal/usecase"
)

// NewProposeCmd creates the propose command
func NewProposeCmd() *cobra.Command {
	var (
		params usecase.ProposeParams
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "propose <dao>",
		Short: "Propose a token transfer out of the DAO",
		Long: `Submit a proposal that transfers --amount tokens of the DAO's votes token
to --recipient. Amounts are decimal token units with 18 decimals. The proposal is cached as Pending and tracked
until it settles.`,
		Example: `  govsync propose treasury --recipient 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 \
    --amount 1.5 --description "Transfer treasury funds"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			dao, err := a.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			params.DAOID = dao.ID

			res, err := a.Executor.Propose(cmd.Context(), params)
			if err := renderAction(cmd, a, res, err); err != nil {
				return err
			}
			if watch && res.Tracking {
				return waitTracker(cmd.Context(), a.Tracker)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Recipient, "recipient", "", "Transfer recipient")
	cmd.Flags().StringVar(&params.Amount, "amount", "", "Amount in tokens, e.g. 1.5")
	cmd.Flags().StringVar(&params.Description, "description", "", "Proposal description")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep tracking the new proposal until it is final")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

// NewDelegateCmd creates the delegate command
func NewDelegateCmd() *cobra.Command {
	var params usecase.DelegateParams

	cmd := &cobra.Command{
		Use:   "delegate <dao> [delegatee]",
		Short: "Delegate voting power on the DAO token",
		Long:  `Delegate the signer's voting power. Without a delegatee the signer delegates to itself.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			dao, err := a.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			params.DAOID = dao.ID
			params.Delegatee = argOrEmpty(args, 1)

			res, err := a.Executor.Delegate(cmd.Context(), params)
			return renderAction(cmd, a, res, err)
		},
	}

	return cmd
}

// NewVoteCmd creates the vote command
func NewVoteCmd() *cobra.Command {
	var (
		support string
		reason  string
	)

	cmd := &cobra.Command{
		Use:   "vote <dao> <proposal-id>",
		Short: "Cast a vote on a proposal",
		Example: `  govsync vote treasury 4242
  govsync vote treasury 4242 --support against --reason "Too much"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.VoteParams{ProposalID: args[1], Reason: reason}
			if cmd.Flags().Changed("support") {
				s, err := parseSupport(support)
				if err != nil {
					return err
				}
				params.Support = &s
			}

			dao, err := a.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			params.DAOID = dao.ID

			res, err := a.Executor.Vote(cmd.Context(), params)
			return renderAction(cmd, a, res, err)
		},
	}

	cmd.Flags().StringVar(&support, "support", "for", "against, for, abstain or 0-2")
	cmd.Flags().StringVar(&reason, "reason", "", fmt.Sprintf("Vote reason (default %q)", usecase.DefaultVoteReason))

	return cmd
}

// NewQueueCmd creates the queue command
func NewQueueCmd() *cobra.Command {
	return newProposalActionCmd("queue", "Queue a succeeded proposal in the timelock",
		func(a *app.App) proposalAction { return a.Executor.Queue })
}

// NewExecuteCmd creates the execute command
func NewExecuteCmd() *cobra.Command {
	return newProposalActionCmd("execute", "Execute a queued proposal",
		func(a *app.App) proposalAction { return a.Executor.Execute })
}

type proposalAction = func(ctx context.Context, params usecase.ProposalActionParams) (*usecase.ActionResult, error)

func newProposalActionCmd(name, short string, pick func(*app.App) proposalAction) *cobra.Command {
	var params usecase.ProposalActionParams

	cmd := &cobra.Command{
		Use:   name + " <dao> <proposal-id>",
		Short: short,
		Long: short + `.

The call is restored from the cached proposal. Pass --recipient and --amount
to rebuild the transfer, and --description when the cached one differs from
what was proposed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			dao, err := a.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := params
			p.DAOID = dao.ID
			p.ProposalID = args[1]

			res, err := pick(a)(cmd.Context(), p)
			return renderAction(cmd, a, res, err)
		},
	}

	cmd.Flags().StringVar(&params.Recipient, "recipient", "", "Rebuild the transfer to this recipient")
	cmd.Flags().StringVar(&params.Amount, "amount", "", "Rebuild the transfer with this token amount")
	cmd.Flags().StringVar(&params.Description, "description", "", "Override the cached description")

	return cmd
}

func renderAction(cmd *cobra.Command, a *app.App, res *usecase.ActionResult, err error) error {
	if err != nil {
		return err
	}
	if a.Config.JSON {
		return render.JSON(cmd.OutOrStdout(), res)
	}
	return render.NewActionRenderer(cmd.OutOrStdout()).Render(res)
}

// parseSupport accepts the Governor vote types by name or number
func parseSupport(v string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "against":
		return usecase.VoteAgainst, nil
	case "for", "yes":
		return usecase.VoteFor, nil
	case "abstain":
		return usecase.VoteAbstain, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 8)
	if err != nil || n > uint64(usecase.VoteAbstain) {
		return 0, fmt.Errorf("invalid --support %q (against, for, abstain or 0-2)", v)
	}
	return uint8(n), nil
}
