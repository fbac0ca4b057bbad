package main

import (
	"fmt"
	"os"

	"imagegen-studio/common"
	"imagegen-studio/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// Version 应用版本
const Version = "1.3.0"

func main() {
	root := &cobra.Command{
		Use:           "imagegen-studio",
		Short:         "Text-to-image studio with style templates and a local generation history",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// 无子命令时以 MCP stdio 服务运行
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(
		serveCmd(),
		generateCmd(),
		enhanceCmd(),
		translateCmd(),
		historyCmd(),
		styleCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the studio tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	// stdout 为协议通道，启动信息写到 stderr
	fmt.Fprintf(os.Stderr, "Server starting...\n")
	fmt.Fprintf(os.Stderr, "API Base URL: %s\n", a.config.OpenAIBaseURL)
	fmt.Fprintf(os.Stderr, "Image Model: %s, Chat Model: %s\n", a.config.ImageModelName, a.config.ChatModelName)
	fmt.Fprintf(os.Stderr, "API Key: %s\n", common.MaskAPIKey(a.config.OpenAIAPIKey))
	fmt.Fprintf(os.Stderr, "Images Dir: %s (%d entries)\n", a.store.Dir(), a.store.Len())

	s := server.NewMCPServer(
		"Image Generation Studio",
		Version,
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterStudioTools(s, tools.Deps{
		Catalog:   a.catalog,
		Generator: a.client,
		Store:     a.store,
		Runner:    a.runner,
	}); err != nil {
		return fmt.Errorf("failed to register studio tools: %w", err)
	}

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
