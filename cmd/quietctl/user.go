package main

import "github.com/spf13/cobra"

var (
	userInviteLink string
	userName       string
)

var userJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a group using an invite link",
	RunE:  runUserJoin,
}

func init() {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user membership",
	}
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userJoinCmd)

	userJoinCmd.Flags().StringVar(&userInviteLink, "invite-link", "", "quiet://invite/... link (required)")
	userJoinCmd.Flags().StringVarP(&userName, "name", "n", "", "display name for the joining identity (required)")
	userJoinCmd.MarkFlagRequired("invite-link")
	userJoinCmd.MarkFlagRequired("name")
}

func runUserJoin(cmd *cobra.Command, args []string) error {
	return runFlow("user.join_as_user", "", map[string]interface{}{
		"invite_link": userInviteLink,
		"name":        userName,
	})
}
