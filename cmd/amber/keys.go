package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"custodia-hq/amber/pkg/config"
	"custodia-hq/amber/pkg/security/keys"
)

var keysFlags struct {
	output string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
	Long: `Generate and inspect the keys used for archive encryption.

Each archive is encrypted with its own AES-256 data key. Data keys are
wrapped with a single master key and persisted alongside the archives,
so only the master key needs protecting.

Subcommands:
  generate - Generate a new master key
  list     - List wrapped data keys

Examples:
  # Generate a master key for the env provider
  amber keys generate

  # Generate a master key file for the file provider
  amber keys generate --output data/master.key

  # List wrapped data keys
  amber keys list`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new master key",
	Long: `Generate a new 256-bit master key.

Without --output the key is printed base64-encoded, ready for the env
provider's AMBER_MASTER_KEY variable. With --output the raw key is
written to a file with owner-only permissions for the file provider.

Examples:
  # Print a base64 key for the env provider
  amber keys generate

  # Write a key file for the file provider
  amber keys generate --output data/master.key`,
	RunE: generateMasterKey,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wrapped data keys",
	Long:  `List the wrapped per-archive data keys in the configured key directory.`,
	RunE:  listDataKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysListCmd)

	keysGenerateCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "", "write the raw key to this file instead of printing base64")
}

func generateMasterKey(cmd *cobra.Command, args []string) error {
	fmt.Println("Generating AES-256 master key...")
	fmt.Println()

	key, err := keys.NewKey()
	if err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}

	if keysFlags.output == "" {
		encoded := base64.StdEncoding.EncodeToString(key)
		fmt.Printf("Master key: %s\n", encoded)
		fmt.Println()
		fmt.Println("⚠️  Warning: store this key securely; archives cannot be decrypted without it")
		fmt.Println("✓  Master key generated successfully")
		fmt.Println()
		fmt.Println("Shell snippet:")
		fmt.Printf("export AMBER_MASTER_KEY=\"%s\"\n", encoded)
		return nil
	}

	if dir := filepath.Dir(keysFlags.output); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// #nosec G304 - user-specified output path is expected behavior for a CLI tool.
	file, err := os.OpenFile(keysFlags.output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("refusing to overwrite existing key file %s", keysFlags.output)
		}
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(key); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	fmt.Printf("Key file: %s\n", keysFlags.output)
	fmt.Println()
	fmt.Println("⚠️  Warning: store this file securely and never commit it to version control")
	fmt.Println("✓  Master key generated successfully")
	fmt.Println()
	fmt.Println("Configuration snippet:")
	fmt.Println("keys:")
	fmt.Println("  provider: \"file\"")
	fmt.Printf("  file_path: \"%s\"\n", keysFlags.output)

	return nil
}

func listDataKeys(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entries, err := os.ReadDir(cfg.Keys.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No key directory at %s\n", cfg.Keys.Dir)
			return nil
		}
		return fmt.Errorf("failed to read key directory: %w", err)
	}

	var count int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fmt.Printf("%s  %s\n",
			strings.TrimSuffix(entry.Name(), ".key"),
			info.ModTime().Format("2006-01-02 15:04:05"))
		count++
	}

	if count == 0 {
		fmt.Printf("No wrapped data keys in %s\n", cfg.Keys.Dir)
		return nil
	}

	fmt.Println()
	fmt.Printf("%d wrapped data keys in %s\n", count, cfg.Keys.Dir)
	return nil
}
