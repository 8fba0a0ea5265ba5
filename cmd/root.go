package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "squarelink",
		Short:         "squarelink: connect a Square seller account to your business",
		Long:          "squarelink signs you in to the account service, connects your Square seller account through OAuth, and manages the locations and subscription plans of your business from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(context.Background())
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSignupCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newStatusCmd(app),
		newConnectCmd(app),
		newDisconnectCmd(app),
		newBusinessCmd(app),
		newLocationsCmd(app),
		newPlansCmd(app),
	)

	return rootCmd
}
