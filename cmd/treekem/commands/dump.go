package commands

import (
	"github.com/spf13/cobra"

	"treekem"
)

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <group>",
		Short: "Print the local view of a group's tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}
			g, ok := member.Groups[args[0]]
			if !ok {
				return treekem.GroupNotFoundError
			}
			g.Tree.Dump(args[0])
			return nil
		},
	}
}
