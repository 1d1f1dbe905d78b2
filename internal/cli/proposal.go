package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/daoservice/govsync/internal/cli/render"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// NewProposalCmd creates the proposal command group
func NewProposalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proposal",
		Aliases: []string{"proposals", "p"},
		Short:   "Inspect and reconcile cached proposals",
	}

	cmd.AddCommand(newProposalListCmd())
	cmd.AddCommand(newProposalShowCmd())
	cmd.AddCommand(newProposalSaveCmd())
	cmd.AddCommand(newProposalSyncCmd())
	cmd.AddCommand(newProposalWatchCmd())

	return cmd
}

func newProposalListCmd() *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:     "list [dao]",
		Aliases: []string{"ls"},
		Short:   "List a DAO's cached proposals",
		Example: `  govsync proposal list "Treasury DAO"
  govsync proposal list treasury --state active --state succeeded`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			filter := make([]models.ProposalState, 0, len(states))
			for _, s := range states {
				state, err := models.ParseProposalState(s)
				if err != nil {
					return err
				}
				filter = append(filter, state)
			}

			dao, err := app.ResolveDAO.Run(cmd.Context(), argOrEmpty(args, 0))
			if err != nil {
				return err
			}

			result, err := app.ListProposals.Run(cmd.Context(), dao.ID, filter...)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), result)
			}
			return render.NewProposalListRenderer(cmd.OutOrStdout()).Render(result)
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Only proposals in these states (name or number)")

	return cmd
}

func newProposalShowCmd() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "show <dao> <proposal-id>",
		Short: "Show a proposal and which actions it allows",
		Long: `Show a cached proposal, its decoded transfer and the eligibility of every
governance action. With --live the ledger state is read as well and a stale
cache is flagged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			dao, err := app.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			details, err := app.ShowProposal.Run(cmd.Context(), dao.ID, args[1], live)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), details)
			}
			return render.NewProposalRenderer(cmd.OutOrStdout()).Render(details)
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "Also read the current state from the ledger")

	return cmd
}

func newProposalSaveCmd() *cobra.Command {
	var (
		description string
		descHash    string
		actionType  string
		targets     []string
		values      []string
		calldatas   []string
		state       string
		track       bool
	)

	cmd := &cobra.Command{
		Use:   "save <dao> <proposal-id>",
		Short: "Create or update a cached proposal",
		Long: `Create a proposal in the cache or merge the given fields into it.

Only the flags you pass are applied; omitted or empty values never clear a
stored field. A new proposal starts Pending unless --state is given, and a
description without --description-hash gets its keccak256 filled in.`,
		Example: `  govsync proposal save treasury 4242 --description "Fund grants" --state active --track`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			update := models.ProposalUpdate{
				Targets:   targets,
				Values:    values,
				Calldatas: calldatas,
			}
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}
			if cmd.Flags().Changed("description-hash") {
				update.DescriptionHash = &descHash
			}
			if cmd.Flags().Changed("action-type") {
				update.ActionType = &actionType
			}
			if cmd.Flags().Changed("state") {
				s, err := models.ParseProposalState(state)
				if err != nil {
					return err
				}
				update.State = &s
			}

			dao, err := app.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			result, err := app.SaveProposal.Run(cmd.Context(), usecase.SaveProposalParams{
				DAOID:      dao.ID,
				ProposalID: args[1],
				Update:     update,
				Track:      track,
			})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				if err := render.JSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				verb := "Updated"
				if result.Created {
					verb = "Created"
				} else if !result.Changed {
					verb = "Unchanged"
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.FormatSuccess(fmt.Sprintf("%s proposal %s (%s)", verb, result.Proposal.ProposalID, result.Proposal.State)))
			}

			if track && !result.Proposal.State.IsFinal() {
				return waitTracker(cmd.Context(), app.Tracker)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Proposal description")
	cmd.Flags().StringVar(&descHash, "description-hash", "", "keccak256 of the description")
	cmd.Flags().StringVar(&actionType, "action-type", "", "Action type tag, e.g. TRANSFER_TO_TREASURY")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "Call target (repeatable)")
	cmd.Flags().StringSliceVar(&values, "value", nil, "Call value in wei (repeatable)")
	cmd.Flags().StringSliceVar(&calldatas, "calldata", nil, "Hex calldata (repeatable)")
	cmd.Flags().StringVar(&state, "state", "", "Proposal state (name or number)")
	cmd.Flags().BoolVar(&track, "track", false, "Keep polling the ledger until the proposal is final")

	return cmd
}

func newProposalSyncCmd() *cobra.Command {
	var params usecase.SyncProposalsParams

	cmd := &cobra.Command{
		Use:   "sync <dao>",
		Short: "Reconcile cached proposals with the ledger once",
		Long: `Read the ledger state of every non-final proposal of a DAO once and
persist changes. Use --all to re-read final proposals too, or --proposal to
sync a single one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			dao, err := app.ResolveDAO.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			params.DAOID = dao.ID

			results, err := app.ReconcileProposals.Sync(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), results)
			}
			return render.NewTickRenderer(cmd.OutOrStdout()).Render(results)
		},
	}

	cmd.Flags().StringVar(&params.ProposalID, "proposal", "", "Only sync this proposal")
	cmd.Flags().BoolVar(&params.IncludeFinal, "all", false, "Include proposals already in a final state")

	return cmd
}

func newProposalWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dao]",
		Short: "Track non-final proposals until they settle",
		Long: `Poll the ledger for every non-final cached proposal, of one DAO or of all
of them, persisting each state change until every proposal is final or the
command is interrupted. State changes are published to NATS when
events.nats_url is set and metrics are served when metrics.addr is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			daoID := ""
			if ref := argOrEmpty(args, 0); ref != "" {
				dao, err := app.ResolveDAO.Run(cmd.Context(), ref)
				if err != nil {
					return err
				}
				daoID = dao.ID
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)

			if app.MetricsServer != nil {
				g.Go(func() error { return app.MetricsServer.Run(gctx) })
			}

			var started int
			g.Go(func() error {
				// stop the metrics server once nothing is left to track
				defer cancel()
				n, err := app.ReconcileProposals.Watch(gctx, daoID)
				started = n
				return err
			})

			if err := g.Wait(); err != nil {
				return err
			}

			if !app.Config.JSON {
				fmt.Fprintln(cmd.OutOrStdout(), render.FormatSuccess(fmt.Sprintf("Watched %d proposal(s)", started)))
			}
			return nil
		},
	}
}

// waitTracker blocks until tracked proposals settle or ctx is cancelled
func waitTracker(ctx context.Context, tracker *usecase.ProposalTracker) error {
	done := make(chan error, 1)
	go func() { done <- tracker.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := tracker.Stop(); err != nil {
			return err
		}
		<-done
		return nil
	}
}
