package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/registry"
)

func newGroupCmd() *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Knowledge base group management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List groups and their members",
		RunE:  runGroupList,
	}

	createCmd := &cobra.Command{
		Use:   "create [group] [kb...]",
		Short: "Create a group over existing knowledge bases",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGroupCreate,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [group]",
		Short: "Delete a group (its knowledge bases are kept)",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupDelete,
	}

	addCmd := &cobra.Command{
		Use:   "add [group] [kb]",
		Short: "Add a knowledge base to a group",
		Args:  cobra.ExactArgs(2),
		RunE:  runGroupAdd,
	}

	removeCmd := &cobra.Command{
		Use:   "remove [group] [kb]",
		Short: "Remove a knowledge base from a group",
		Args:  cobra.ExactArgs(2),
		RunE:  runGroupRemove,
	}

	queryCmd := &cobra.Command{
		Use:   "query [group] [text]",
		Short: "Search every knowledge base of a group and merge the results",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runGroupQuery,
	}
	queryCmd.Flags().Int("per-kb", registry.DefaultKPerInstance, "Results requested from each knowledge base")
	queryCmd.Flags().IntP("limit", "l", 0, "Max merged results (0 = all)")

	clearCmd := &cobra.Command{
		Use:   "clear [group]",
		Short: "Delete every record of every knowledge base in a group",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupClear,
	}

	groupCmd.AddCommand(listCmd, createCmd, deleteCmd, addCmd, removeCmd, queryCmd, clearCmd)
	return groupCmd
}

type groupInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func runGroupList(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	rows := []groupInfo{}
	for _, gid := range c.Registry().ListGroups() {
		members, err := c.Registry().GroupMembers(gid)
		if err != nil {
			continue
		}
		rows = append(rows, groupInfo{Name: gid, Members: members})
	}
	return printJSON(cmd, rows)
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.CreateGroup(args[0], args[1:]); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "created", Name: args[0]})
}

func runGroupDelete(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.DeleteGroup(args[0]); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "deleted", Name: args[0]})
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.AddToGroup(args[0], args[1]); err != nil {
		return err
	}
	members, err := c.Registry().GroupMembers(args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, groupInfo{Name: args[0], Members: members})
}

func runGroupRemove(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.RemoveFromGroup(args[0], args[1]); err != nil {
		return err
	}
	members, err := c.Registry().GroupMembers(args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, groupInfo{Name: args[0], Members: members})
}

func runGroupQuery(cmd *cobra.Command, args []string) error {
	perKB, _ := cmd.Flags().GetInt("per-kb")
	limit, _ := cmd.Flags().GetInt("limit")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	results, err := c.QueryGroup(cmd.Context(), args[0], joinArgs(args[1:]), perKB, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd, results)
}

func runGroupClear(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Registry().ClearGroup(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "cleared", Name: args[0]})
}
