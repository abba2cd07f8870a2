package cmd

import (
	"github.com/spf13/cobra"

	planemcp "github.com/joescharf/plane/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client list, create and update issues, add comments
and read analytics. Configure the client with:

  {
    "mcpServers": {
      "plane": { "command": "plane", "args": ["mcp"] }
    }
  }

Available tools: plane_list_issues, plane_create_issue, plane_update_issue,
plane_bulk_update, plane_add_comment, plane_cycle_analytics,
plane_module_progress, plane_project_analytics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		srv := planemcp.NewServer(s, currentUser(), buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
