package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/stark/internal/channels"
	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/internal/tools/builtin"
)

// runToolsList reports every built-in tool's static spec. It needs no
// database or channel connection: Spec() never touches a tool's runtime
// dependencies, so every constructor below is given a nil/zero dependency
// purely to satisfy its signature.
func runToolsList(cmd *cobra.Command) error {
	registry := tools.NewRegistry()
	builtinTools := []tools.Tool{
		builtin.NewReadFileTool(".", 1<<20),
		builtin.NewWriteFileTool("."),
		builtin.NewRunShellTool("."),
		builtin.NewWebFetchTool(8000),
		builtin.NewMemorySearchTool(nil, ""),
		builtin.NewSendMessageTool(channels.ToolSender{}),
		builtin.NewSystemStatusTool(nil),
		builtin.NewSetAddressTool(),
		builtin.NewToRawAmountTool(),
		builtin.NewErc20TransferTool(nil, "mainnet"),
		builtin.NewBroadcastWeb3TxTool(builtin.NewHTTPRPCClient(), ""),
	}
	for _, t := range builtinTools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool %s: %w", t.Spec().Name, err)
		}
	}

	out := cmd.OutOrStdout()
	for _, spec := range registry.List() {
		fmt.Fprintf(out, "%s\t%s\t%s\n", spec.Name, spec.Group, spec.Description)
	}
	return nil
}
