package main

import (
	"os"

	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/mcpserver"
	"expenses/internal/proxy"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateProxy)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Connecting to remote MCP server", "url", cfg.ProxyRemoteURL)
	remote, info, err := proxy.Dial(ctx, cfg.ProxyRemoteURL, cfg.ServerName+" Proxy")
	if err != nil {
		logger.Error("Failed to connect to remote server", log.FieldError, err, "url", cfg.ProxyRemoteURL)
		os.Exit(1)
	}
	defer remote.Close()
	logger.Info("Connected to remote server",
		"server_name", info.ServerInfo.Name,
		"server_version", info.ServerInfo.Version,
		"protocol_version", info.ProtocolVersion)

	s, err := proxy.New(ctx, cfg.ServerName, remote, logger)
	if err != nil {
		logger.Error("Failed to mirror remote server", log.FieldError, err)
		os.Exit(1)
	}

	if err := mcpserver.Serve(ctx, s, mcpserver.TransportFromConfig(cfg), logger); err != nil {
		logger.Error("Proxy error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Proxy stopped gracefully")
}
