package main

import "github.com/spf13/cobra"

var (
	inviteNetworkID string
	inviteGroupID   string
	invitePeerID    string
	inviteIdentity  string
)

var inviteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an invite link for a group",
	RunE:  runInviteCreate,
}

func init() {
	inviteCmd := &cobra.Command{
		Use:   "invite",
		Short: "Manage invites",
	}
	rootCmd.AddCommand(inviteCmd)
	inviteCmd.AddCommand(inviteCreateCmd)

	inviteCreateCmd.Flags().StringVar(&inviteNetworkID, "network-id", "", "network id (required)")
	inviteCreateCmd.Flags().StringVar(&inviteGroupID, "group-id", "", "group id to invite into (required)")
	inviteCreateCmd.Flags().StringVar(&invitePeerID, "peer-id", "", "acting peer id (required)")
	inviteCreateCmd.Flags().StringVar(&inviteIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	inviteCreateCmd.MarkFlagRequired("network-id")
	inviteCreateCmd.MarkFlagRequired("group-id")
	inviteCreateCmd.MarkFlagRequired("peer-id")
}

func runInviteCreate(cmd *cobra.Command, args []string) error {
	return runFlow("invite.create", inviteIdentity, map[string]interface{}{
		"network_id": inviteNetworkID,
		"group_id":   inviteGroupID,
		"peer_id":    invitePeerID,
	})
}
