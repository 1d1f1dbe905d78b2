package cli

import (
	"github.com/spf13/cobra"

	"github.com/daoservice/govsync/internal/cli/render"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// NewDAOCmd creates the dao command group
func NewDAOCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dao",
		Short: "Register and inspect DAOs",
		Long: `Register and inspect the DAOs whose governor proposals govsync caches.

A DAO can be referenced by its id, its governor address or its name.
Partial names are fuzzy matched and you are asked to pick when several match.`,
	}

	cmd.AddCommand(newDAORegisterCmd())
	cmd.AddCommand(newDAOListCmd())
	cmd.AddCommand(newDAOShowCmd())

	return cmd
}

func newDAORegisterCmd() *cobra.Command {
	var params usecase.RegisterDAOParams
	var metadata map[string]string

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a DAO",
		Example: `  govsync dao register "Treasury DAO" \
    --governor 0x5FbDB2315678afecb367f032d93F642f64180aa3 \
    --token 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512 \
    --treasury 0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params.Name = args[0]
			if params.Creator == "" {
				params.Creator = app.Config.Signer.Address
			}
			if len(metadata) > 0 {
				params.Metadata = make(map[string]any, len(metadata))
				for k, v := range metadata {
					params.Metadata[k] = v
				}
			}

			dao, err := app.RegisterDAO.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), dao)
			}
			return render.NewDAORenderer(cmd.OutOrStdout()).RenderDAO(dao)
		},
	}

	cmd.Flags().StringVar(&params.Description, "description", "", "DAO description")
	cmd.Flags().StringVar(&params.Creator, "creator", "", "Creator address (defaults to the signer)")
	cmd.Flags().StringVar(&params.GovernorAddress, "governor", "", "Governor contract address")
	cmd.Flags().StringVar(&params.TokenAddress, "token", "", "Votes token address")
	cmd.Flags().StringVar(&params.Treasury, "treasury", "", "Treasury address")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "Free-form metadata as key=value pairs")
	_ = cmd.MarkFlagRequired("governor")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("treasury")

	return cmd
}

func newDAOListCmd() *cobra.Command {
	var filter models.DAOFilter

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered DAOs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			daos, err := app.ListDAOs.Run(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), daos)
			}
			return render.NewDAORenderer(cmd.OutOrStdout()).RenderList(daos)
		},
	}

	cmd.Flags().StringVar(&filter.GovernorAddress, "governor", "", "Only DAOs using this governor")
	cmd.Flags().StringVar(&filter.Creator, "creator", "", "Only DAOs created by this address")

	return cmd
}

func newDAOShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [dao]",
		Short: "Show a DAO",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			dao, err := app.ResolveDAO.Run(cmd.Context(), argOrEmpty(args, 0))
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), dao)
			}
			return render.NewDAORenderer(cmd.OutOrStdout()).RenderDAO(dao)
		},
	}
}

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
