// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/wingedpig/conduit/internal/app"
	"github.com/wingedpig/conduit/internal/config"
)

var (
	version = "0.9"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Parse flags
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if showVersion {
		fmt.Printf("conduit %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified. Running without one is fine:
	// the app falls back to built-in defaults.
	if configPath == "" {
		loader := config.NewLoader()
		if found, err := loader.FindConfig(); err == nil {
			configPath = found
		}
	}

	if configPath != "" {
		log.Printf("Using config: %s", configPath)
	} else {
		log.Printf("No config file found, using defaults")
	}

	// Create and run app
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Debug:      debug,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "conduit init" command
func runInit() error {
	// Parse init-specific flags
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: conduit init [options]

Create a new conduit.hjson configuration file in the current directory.

This command walks you through setting up a Conduit configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Server port (defaults to 8750)
  - Which provider CLIs to enable (claude, opencode, gemini)
  - Whether to watch transcript directories for changes

Examples:
  conduit init              Create config with interactive prompts
  cd myproject && conduit init

After running init:
  1. Review and edit conduit.hjson as needed
  2. Run: ./conduit
  3. Open: http://localhost:8750`)
		return nil
	}

	configFile := "conduit.hjson"

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Conduit Configuration Setup")
	fmt.Println("===========================")
	fmt.Println()
	fmt.Println("This will create a conduit.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	// Question 1: Port
	portStr := prompt(reader, "Server port", "8750")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8750
	}

	// Question 2: Providers
	fmt.Println()
	fmt.Println("Providers are the AI CLI tools Conduit spawns and streams from.")
	claudeEnabled := yes(prompt(reader, "Enable the claude provider? (y/n)", "y"))
	opencodeEnabled := yes(prompt(reader, "Enable the opencode provider? (y/n)", "y"))
	geminiEnabled := yes(prompt(reader, "Enable the gemini provider? (y/n)", "y"))

	// Question 3: Transcript watching
	fmt.Println()
	watchEnabled := yes(prompt(reader, "Watch transcript directories for changes? (y/n)", "y"))

	// Generate the config file
	configContent := generateConfig(port, claudeEnabled, opencodeEnabled, geminiEnabled, watchEnabled)

	// Write the file
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit conduit.hjson as needed")
	fmt.Println("  2. Run: ./conduit")
	fmt.Println("  3. Open: http://localhost:" + strconv.Itoa(port))
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	return strings.ToLower(answer) == "y"
}

func generateConfig(port int, claude, opencode, gemini, watch bool) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Conduit Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  version: "1.0"

  // ---------------------------------------------------------------------------
  // HTTP Server
  // ---------------------------------------------------------------------------
  server: {
    host: "127.0.0.1"
`)
	sb.WriteString(fmt.Sprintf("    port: %d\n", port))
	sb.WriteString(`
    // Optional TLS. Both must be set to enable HTTPS.
    // tls_cert: "/path/to/cert.pem"
    // tls_key: "/path/to/key.pem"
  }

  // ---------------------------------------------------------------------------
  // Runner
  // ---------------------------------------------------------------------------
  runner: {
    // How long to wait after SIGTERM before escalating to SIGKILL.
    stop_timeout: "5s"

    // Working directory for spawned CLI processes. Empty means inherit.
    // work_dir: "/path/to/project"
  }

  // ---------------------------------------------------------------------------
  // Providers
  // ---------------------------------------------------------------------------
  //
  // Each provider can be disabled, and its binary path overridden when the
  // CLI is not on PATH.
  providers: {
`)
	sb.WriteString(fmt.Sprintf("    claude: {\n      enabled: %t\n      // binary: \"/usr/local/bin/claude\"\n    }\n", claude))
	sb.WriteString(fmt.Sprintf("    opencode: {\n      enabled: %t\n      // binary: \"/usr/local/bin/opencode\"\n    }\n", opencode))
	sb.WriteString(fmt.Sprintf("    gemini: {\n      enabled: %t\n      // binary: \"/usr/local/bin/gemini\"\n    }\n", gemini))
	sb.WriteString(`  }

  // ---------------------------------------------------------------------------
  // History
  // ---------------------------------------------------------------------------
  //
  // Transcript directory overrides. Defaults follow each CLI's conventions:
  //   claude:   ~/.claude/projects
  //   opencode: ~/.local/share/opencode/storage
  //   gemini:   ~/.gemini/tmp
  history: {
    // claude_dir: ""
    // opencode_dir: ""
    // gemini_dir: ""
  }

  // ---------------------------------------------------------------------------
  // Session Store
  // ---------------------------------------------------------------------------
  store: {
    path: "~/.conduit/conduit.db"
  }

  // ---------------------------------------------------------------------------
  // Transcript Watching
  // ---------------------------------------------------------------------------
  watch: {
`)
	sb.WriteString(fmt.Sprintf("    enabled: %t\n", watch))
	sb.WriteString(`    debounce: "500ms"
  }

  // ---------------------------------------------------------------------------
  // Logging
  // ---------------------------------------------------------------------------
  logging: {
    level: "info"
    // file: "/var/log/conduit.log"
  }
}
`)

	return sb.String()
}
