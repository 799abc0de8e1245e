package main

import "github.com/spf13/cobra"

var (
	networkName     string
	networkPeerID   string
	networkIdentity string
)

var networkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new network",
	RunE:  runNetworkCreate,
}

func init() {
	networkCmd := &cobra.Command{
		Use:   "network",
		Short: "Manage networks",
	}
	rootCmd.AddCommand(networkCmd)
	networkCmd.AddCommand(networkCreateCmd)

	networkCreateCmd.Flags().StringVarP(&networkName, "name", "n", "", "network name (required)")
	networkCreateCmd.Flags().StringVar(&networkPeerID, "peer-id", "", "acting peer id (required)")
	networkCreateCmd.Flags().StringVar(&networkIdentity, "identity", "", "local identity id to sign as (defaults to configured identity)")
	networkCreateCmd.MarkFlagRequired("name")
	networkCreateCmd.MarkFlagRequired("peer-id")
}

func runNetworkCreate(cmd *cobra.Command, args []string) error {
	return runFlow("network.create", networkIdentity, map[string]interface{}{
		"name":    networkName,
		"peer_id": networkPeerID,
	})
}
