package main

import "github.com/spf13/cobra"

var (
	channelName      string
	channelGroupID   string
	channelNetworkID string
	channelPeerID    string
	channelIdentity  string
)

var channelCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new channel within a group",
	RunE:  runChannelCreate,
}

func init() {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channels",
	}
	rootCmd.AddCommand(channelCmd)
	channelCmd.AddCommand(channelCreateCmd)

	channelCreateCmd.Flags().StringVarP(&channelName, "name", "n", "", "channel name")
	channelCreateCmd.Flags().StringVar(&channelGroupID, "group-id", "", "group id to create the channel in (required)")
	channelCreateCmd.Flags().StringVar(&channelNetworkID, "network-id", "", "network id the group belongs to")
	channelCreateCmd.Flags().StringVar(&channelPeerID, "peer-id", "", "acting peer id (required)")
	channelCreateCmd.Flags().StringVar(&channelIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	channelCreateCmd.MarkFlagRequired("group-id")
	channelCreateCmd.MarkFlagRequired("peer-id")
}

func runChannelCreate(cmd *cobra.Command, args []string) error {
	return runFlow("channel.create", channelIdentity, map[string]interface{}{
		"name":       channelName,
		"group_id":   channelGroupID,
		"network_id": channelNetworkID,
		"peer_id":    channelPeerID,
	})
}
