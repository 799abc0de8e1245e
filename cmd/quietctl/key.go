package main

import "github.com/spf13/cobra"

var (
	keyGroupID   string
	keyNetworkID string
	keyPeerID    string
	keyIdentity  string
)

var keyRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate a group's symmetric key",
	RunE:  runKeyRotate,
}

func init() {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage group keys",
	}
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyRotateCmd)

	keyRotateCmd.Flags().StringVar(&keyGroupID, "group-id", "", "group id to rotate the key for (required)")
	keyRotateCmd.Flags().StringVar(&keyNetworkID, "network-id", "", "network id the group belongs to (required)")
	keyRotateCmd.Flags().StringVar(&keyPeerID, "peer-id", "", "acting peer id (required)")
	keyRotateCmd.Flags().StringVar(&keyIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	keyRotateCmd.MarkFlagRequired("group-id")
	keyRotateCmd.MarkFlagRequired("network-id")
	keyRotateCmd.MarkFlagRequired("peer-id")
}

func runKeyRotate(cmd *cobra.Command, args []string) error {
	return runFlow("key.rotate", keyIdentity, map[string]interface{}{
		"group_id":   keyGroupID,
		"network_id": keyNetworkID,
		"peer_id":    keyPeerID,
	})
}
