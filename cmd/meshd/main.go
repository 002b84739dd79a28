package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/airmesh/mesh/internal/config"
	"github.com/airmesh/mesh/internal/daemon"
	"github.com/airmesh/mesh/pkg/mesh"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0" -o meshd ./cmd/meshd
var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
		return
	}

	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "peers":
		runPeers(os.Args[2:])
	case "join":
		runJoin(os.Args[2:])
	case "create":
		runCreate(os.Args[2:])
	case "leave":
		runLeave(os.Args[2:])
	case "version", "--version":
		fmt.Printf("meshd %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: meshd <command> [options]")
	fmt.Println()
	fmt.Println("  start [--config path]           Start the mesh node (control plane + radio)")
	fmt.Println("  status [--config path]          Query the running node")
	fmt.Println("  peers [--config path]           List currently connected peers")
	fmt.Println("  create <group> <code> [--config path]   Create and advertise a group")
	fmt.Println("  join <group> <code> [--config path]      Scan for and join a group")
	fmt.Println("  leave [--config path]            Return to idle")
	fmt.Println("  version                          Show version information")
}

func defaultConfigPath() string {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		fatal("cannot determine config directory: %v", err)
	}
	return filepath.Join(dir, "mesh.yaml")
}

func socketPaths() (socket, cookie string) {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		fatal("cannot determine config directory: %v", err)
	}
	return filepath.Join(dir, "meshd.sock"), filepath.Join(dir, ".meshd-cookie")
}

func loadConfig(args []string) (*config.MeshConfig, string) {
	path := defaultConfigPath()
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			fatal("create config directory: %v", err)
		}
		if err := config.Save(path, &config.MeshConfig{}); err != nil {
			fatal("write initial config: %v", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg, path
}

// --- start (foreground daemon) ---

func runStart(args []string) {
	cfg, path := loadConfig(args)
	fmt.Printf("meshd %s, config: %s, node_id: %d\n", version, path, cfg.Identity.NodeID)

	ctrl := mesh.NewController(
		mesh.NodeID(cfg.Identity.NodeID),
		mesh.NewNullLinkDriver(),
		mesh.NullAudioEngine{},
		cfg.Tuning.ToConstants(),
		nil,
		slog.Default(),
	)
	defer ctrl.Leave()

	socketPath, cookiePath := socketPaths()
	if cfg.Daemon.SocketPath != "" {
		socketPath = cfg.Daemon.SocketPath
	}
	srv := daemon.NewServer(ctrl, socketPath, cookiePath, version, slog.Default())
	if err := srv.Start(); err != nil {
		fatal("control daemon failed to start: %v", err)
	}
	defer srv.Stop()
	fmt.Printf("control daemon listening: %s\n", socketPath)

	if cfg.Group.Create && cfg.Group.AutoJoin != "" {
		if err := ctrl.CreateGroup(cfg.Group.AutoJoin, cfg.Group.AccessCode); err != nil {
			slog.Error("auto-create failed", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("\nreceived %s, shutting down\n", sig)
}

// --- client subcommands ---

func daemonClient() *daemon.Client {
	socketPath, cookiePath := socketPaths()
	c, err := daemon.NewClient(socketPath, cookiePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
	return c
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func runStatus(args []string) {
	c := daemonClient()
	resp, err := c.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}
	printJSON(resp)
}

func runPeers(args []string) {
	c := daemonClient()
	resp, err := c.Peers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}
	printJSON(resp)
}

func runCreate(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: meshd create <group> <access-code>")
		osExit(1)
		return
	}
	c := daemonClient()
	if err := c.CreateGroup(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}
	fmt.Println("group created, radio active")
}

func runJoin(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: meshd join <group> <access-code>")
		osExit(1)
		return
	}
	c := daemonClient()
	if err := c.JoinGroup(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}
	fmt.Println("joined, radio active")
}

func runLeave(args []string) {
	c := daemonClient()
	if err := c.LeaveGroup(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}
	fmt.Println("left group")
}
