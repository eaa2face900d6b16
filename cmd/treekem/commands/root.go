package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"treekem"
)

var (
	statePath string
	member    *treekem.Member
)

func Execute() error {
	root := &cobra.Command{
		Use:          "treekem",
		Short:        "Group key agreement over an asynchronous transport",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&statePath, "state", "", "member state file (default ~/.treekem/member)")

	root.AddCommand(
		initCmd(),
		credentialCmd(),
		createGroupCmd(),
		welcomeCmd(),
		joinCmd(),
		applyUpdateCmd(),
		refreshCmd(),
		removeCmd(),
		applyBlanksCmd(),
		sendCmd(),
		recvCmd(),
		dumpCmd(),
	)
	return root.Execute()
}

func resolveStatePath() (string, error) {
	if statePath != "" {
		return statePath, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".treekem", "member"), nil
}

func loadMember() error {
	path, err := resolveStatePath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("no member state at %s, run init first", path)
	}

	member, err = treekem.UnmarshalMember(data)
	return err
}

func saveMember() error {
	path, err := resolveStatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := member.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
