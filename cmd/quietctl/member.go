package main

import "github.com/spf13/cobra"

var (
	memberGroupID   string
	memberUserID    string
	memberPeerID    string
	memberNetworkID string
	memberIdentity  string
)

var memberAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Grant a user membership in a group",
	RunE:  runMemberAdd,
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Revoke a user's membership and rotate the group key",
	RunE:  runMemberRemove,
}

func init() {
	memberCmd := &cobra.Command{
		Use:   "member",
		Short: "Manage group membership",
	}
	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberAddCmd, memberRemoveCmd)

	for _, c := range []*cobra.Command{memberAddCmd, memberRemoveCmd} {
		c.Flags().StringVar(&memberGroupID, "group-id", "", "group id (required)")
		c.Flags().StringVar(&memberUserID, "user-id", "", "user id being added or removed (required)")
		c.Flags().StringVar(&memberPeerID, "peer-id", "", "acting peer id (required)")
		c.Flags().StringVar(&memberNetworkID, "network-id", "", "network id the group belongs to (required)")
		c.Flags().StringVar(&memberIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
		c.MarkFlagRequired("group-id")
		c.MarkFlagRequired("user-id")
		c.MarkFlagRequired("peer-id")
		c.MarkFlagRequired("network-id")
	}
}

func memberParams() map[string]interface{} {
	return map[string]interface{}{
		"group_id":   memberGroupID,
		"user_id":    memberUserID,
		"peer_id":    memberPeerID,
		"network_id": memberNetworkID,
	}
}

func runMemberAdd(cmd *cobra.Command, args []string) error {
	return runFlow("member.add", memberIdentity, memberParams())
}

func runMemberRemove(cmd *cobra.Command, args []string) error {
	return runFlow("member.remove", memberIdentity, memberParams())
}
