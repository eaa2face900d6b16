// Package commands defines the treekem demo CLI.
//
// Commands
//
//   - init          Create a local member identity
//   - credential    Export the member's credential for a group admin
//   - create-group  Create a group and claim its first leaf
//   - welcome       Invite a credential holder into a group
//   - join          Join a group from a welcome file
//   - apply-update  Apply another member's path update
//   - refresh       Rotate this member's leaf key and path
//   - remove        Remove a member and emit blank messages
//   - apply-blanks  Apply a removal produced elsewhere
//   - send          Encrypt an application message
//   - recv          Decrypt an application message
//   - dump          Print the local view of a group's tree
//
// Every command loads the member state file named by --state, performs one
// protocol operation, and writes the state back.  Wire messages travel as
// binary files so that two members on one machine (or a shared folder) can
// run the whole protocol by exchanging paths.
package commands
