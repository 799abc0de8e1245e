package main

import "github.com/spf13/cobra"

var (
	messageChannelID string
	messageGroupID   string
	messageNetworkID string
	messagePeerID    string
	messageBody      string
	messageIdentity  string
)

var messageSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to a channel",
	RunE:  runMessageSend,
}

func init() {
	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Send messages",
	}
	rootCmd.AddCommand(messageCmd)
	messageCmd.AddCommand(messageSendCmd)

	messageSendCmd.Flags().StringVar(&messageChannelID, "channel-id", "", "channel id (required)")
	messageSendCmd.Flags().StringVar(&messageGroupID, "group-id", "", "group id the channel belongs to (required)")
	messageSendCmd.Flags().StringVar(&messageNetworkID, "network-id", "", "network id the group belongs to (required)")
	messageSendCmd.Flags().StringVar(&messagePeerID, "peer-id", "", "acting peer id (required)")
	messageSendCmd.Flags().StringVarP(&messageBody, "body", "b", "", "message body text")
	messageSendCmd.Flags().StringVar(&messageIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	messageSendCmd.MarkFlagRequired("channel-id")
	messageSendCmd.MarkFlagRequired("group-id")
	messageSendCmd.MarkFlagRequired("network-id")
	messageSendCmd.MarkFlagRequired("peer-id")
}

func runMessageSend(cmd *cobra.Command, args []string) error {
	return runFlow("message.send", messageIdentity, map[string]interface{}{
		"channel_id": messageChannelID,
		"group_id":   messageGroupID,
		"network_id": messageNetworkID,
		"peer_id":    messagePeerID,
		"body":       messageBody,
	})
}
