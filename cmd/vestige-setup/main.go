// Command vestige-setup walks a user through configuring a Vestige
// store and registering vestige-mcp with a local MCP client.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vestige-mem/vestige/internal/config"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--verify" {
			runVerify()
			return
		}
	}

	printBanner()

	fmt.Println("Welcome to Vestige Setup!")
	fmt.Println("Vestige gives AI assistants persistent, decaying memory across sessions.")
	fmt.Println()

	runSetup()
}

func printBanner() {
	fmt.Print(`
__   __         _   _
\ \ / /__  ___ | |_(_) __ _  ___
 \ V / _ \/ __|| __| |/ _` + "`" + ` |/ _ \
  | |  __/\__ \| |_| | (_| |  __/
  |_|\___||___/ \__|_|\__, |\___|
                       |___/
Persistent Memory for AI Assistants
`)
}

// runVerify performs a health check of the Vestige installation.
func runVerify() {
	fmt.Println("Vestige Setup Verification")
	fmt.Println("==========================")
	fmt.Println()

	statusOK := true

	mcpBinary, mcpFound := findMCPBinary()
	if mcpFound {
		fmt.Printf("MCP binary:   OK, found at %s\n", mcpBinary)
	} else {
		fmt.Println("MCP binary:   NOT FOUND (run vestige-setup to build/register it)")
		statusOK = false
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config:       ERROR, %v\n", err)
		statusOK = false
	} else {
		dbDirWritable := isWritableDir(filepath.Dir(cfg.DBPath))
		if dbDirWritable {
			fmt.Printf("Database:     OK, %s (directory writable)\n", cfg.DBPath)
		} else {
			fmt.Printf("Database:     NOT WRITABLE, %s\n", cfg.DBPath)
			statusOK = false
		}
	}

	fmt.Println()
	if statusOK {
		fmt.Println("Status:       READY")
		fmt.Println()
		fmt.Println("Connect to Claude Code:")
		fmt.Printf("  claude mcp add vestige %s --scope user\n", mcpBinary)
		os.Exit(0)
	} else {
		fmt.Println("Status:       NOT READY")
		fmt.Println()
		fmt.Println("Run vestige-setup (without --verify) to finish installation.")
		os.Exit(1)
	}
}

func findMCPBinary() (string, bool) {
	candidates := []string{"./vestige-mcp"}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", "vestige-mcp"))
	}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "vestige-mcp"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "vestige-mcp"))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return path, true
		}
	}
	return "", false
}

func isWritableDir(dir string) bool {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".vestige-write-test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// prompt asks a free-text question with an optional default.
func prompt(question, defaultVal string) string {
	scanner := bufio.NewScanner(os.Stdin)
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	scanner.Scan()
	val := strings.TrimSpace(scanner.Text())
	if val == "" {
		return defaultVal
	}
	return val
}

func runSetup() {
	projectDir, _ := os.Getwd()

	dbPath := prompt("Database path", filepath.Join(projectDir, "data", "vestige.db"))
	embeddingModel := prompt("Embedding model name (used for ingest/search similarity)", "nomic-embed-text")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		fmt.Printf("ERROR: could not create database directory: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Defaults()
	cfg.DBPath = dbPath
	cfg.EmbeddingModel = embeddingModel

	configDir := filepath.Join(projectDir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		fmt.Printf("ERROR: could not create config directory: %v\n", err)
		os.Exit(1)
	}
	configPath := filepath.Join(configDir, "vestige.yaml")
	writeConfigFile(configPath, cfg)

	registerWithClaude(configPath)

	fmt.Printf(`
Setup complete!

Database:    %s
Config file: %s

Run the server directly with:
  VESTIGE_CONFIG_FILE=%s ./vestige-mcp

Verify the installation any time with:
  vestige-setup --verify
`, dbPath, configPath, configPath)
}

func writeConfigFile(path string, cfg config.Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Printf("ERROR: failed to marshal config: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		fmt.Printf("ERROR: failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: config written to %s\n", path)
}

func registerWithClaude(configPath string) {
	fmt.Println("\nRegistering with Claude Code...")

	mcpBinary, found := findMCPBinary()
	if !found {
		fmt.Println("WARNING: vestige-mcp binary not found.")
		fmt.Println("   Build it first: go build -o vestige-mcp ./cmd/vestige-mcp/")
		printManualMCPInstructions(configPath)
		return
	}

	claudePath, err := exec.LookPath("claude")
	if err != nil {
		fmt.Println("WARNING: claude CLI not found, skipping auto-registration")
		printManualMCPInstructions(configPath)
		return
	}

	fmt.Printf("   Found claude at %s\n", claudePath)
	registerCmd := exec.Command(claudePath, "mcp", "add", "vestige", mcpBinary,
		"--scope", "user",
		"-e", "VESTIGE_CONFIG_FILE="+configPath,
	)
	if output, err := registerCmd.CombinedOutput(); err != nil {
		fmt.Printf("WARNING: could not auto-register MCP: %v\n%s\n", err, output)
		printManualMCPInstructions(configPath)
		return
	}
	fmt.Println("OK: registered with Claude Code")
}

func printManualMCPInstructions(configPath string) {
	fmt.Printf(`
To connect Vestige to Claude Code, run:

  claude mcp add vestige ./vestige-mcp \
    --scope user \
    -e VESTIGE_CONFIG_FILE=%s

Then restart Claude Code and verify with /mcp
`, configPath)
}
