package main

import "github.com/spf13/cobra"

var (
	groupName      string
	groupNetworkID string
	groupPeerID    string
	groupIdentity  string
)

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new group within a network",
	RunE:  runGroupCreate,
}

func init() {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd)

	groupCreateCmd.Flags().StringVarP(&groupName, "name", "n", "", "group name")
	groupCreateCmd.Flags().StringVar(&groupNetworkID, "network-id", "", "network id to create the group in (required)")
	groupCreateCmd.Flags().StringVar(&groupPeerID, "peer-id", "", "acting peer id (required)")
	groupCreateCmd.Flags().StringVar(&groupIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	groupCreateCmd.MarkFlagRequired("network-id")
	groupCreateCmd.MarkFlagRequired("peer-id")
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	return runFlow("group.create", groupIdentity, map[string]interface{}{
		"name":       groupName,
		"network_id": groupNetworkID,
		"peer_id":    groupPeerID,
	})
}
