package cli

import (
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/mcp"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the todo list as MCP tools on stdin/stdout",
		Long: `Run a Model Context Protocol server over stdio. Requests are read from
stdin one JSON-RPC message per line and answered on stdout. Logs go to
stderr or the configured log file.

Tools: get_todos, add_todo, remove_todo, update_todo.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			srv := mcp.New(st, mcp.Options{Version: version(), Logger: a.logger})
			a.logger.Info("mcp server started", "store", st.Path())
			return srv.Serve(cmd.Context(), a.streams.In, a.streams.Out)
		},
	}
}
