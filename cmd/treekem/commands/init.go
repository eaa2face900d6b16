package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"treekem"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <pseudonym>",
		Short: "Create a local member identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveStatePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("member state already exists at %s", path)
			}

			member, err = treekem.NewMember(args[0])
			if err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("Member %q created.\nState: %s\n", args[0], path)
			return nil
		},
	}
}
