package main

import "github.com/spf13/cobra"

var (
	identityName        string
	identityNetworkName string
	identityGroupName   string
	identityChannelName string
)

var identityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new identity, bootstrapping a network/group/channel for it",
	Example: `  # Create an identity and its own starter network
  quietctl identity create --name alice`,
	RunE: runIdentityCreate,
}

func init() {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage local identities",
	}
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityCreateCmd)

	identityCreateCmd.Flags().StringVarP(&identityName, "name", "n", "", "display name for the new identity (required)")
	identityCreateCmd.Flags().StringVar(&identityNetworkName, "network-name", "My Network", "name of the starter network to create")
	identityCreateCmd.Flags().StringVar(&identityGroupName, "group-name", "General", "name of the starter group to create")
	identityCreateCmd.Flags().StringVar(&identityChannelName, "channel-name", "general", "name of the starter channel to create")
	identityCreateCmd.MarkFlagRequired("name")
}

func runIdentityCreate(cmd *cobra.Command, args []string) error {
	return runFlow("identity.create_as_user", "", map[string]interface{}{
		"name":         identityName,
		"network_name": identityNetworkName,
		"group_name":   identityGroupName,
		"channel_name": identityChannelName,
	})
}
