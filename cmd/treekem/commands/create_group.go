package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createGroupCmd() *cobra.Command {
	var capacity uint32
	var threshold uint32

	cmd := &cobra.Command{
		Use:   "create-group <name>",
		Short: "Create a group and claim its first leaf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}
			name := args[0]

			if err := member.CreateGroup(name, capacity, threshold); err != nil {
				return err
			}
			// The creator's own path update has no recipients yet
			if _, err := member.AddToGroup(name); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			g := member.Groups[name]
			fmt.Printf("Group %q created: capacity %d, threshold %d, leaf %d\n",
				name, capacity, threshold, g.LeafID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&capacity, "capacity", 8, "maximum members (power of two)")
	cmd.Flags().Uint32Var(&threshold, "threshold", 1, "admin quorum recorded in the group")
	return cmd
}
