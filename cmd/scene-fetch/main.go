// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scene-fetch CLI.
//
// scene-fetch searches the Microsoft Planetary Computer STAC catalog for
// satellite scenes and downloads their assets with signed URLs. Each
// operation is a subcommand: search, download, history, version.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scene-fetch/internal/secrets"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the scene-fetch CLI.
var rootCmd = &cobra.Command{
	Use:   "scene-fetch",
	Short: "Search and download Planetary Computer satellite imagery",
	Long: `scene-fetch finds satellite scenes in the Microsoft Planetary Computer
STAC catalog and downloads their assets. Asset URLs are signed with
short-lived SAS tokens automatically; no Azure account is required.

Search results can be saved to a file and downloaded later without
re-querying the catalog. Every search and download is recorded in a
local history ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir := viper.GetString("secrets_dir")
		if dir == "" {
			dir = ".secrets/"
		}
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scene-fetch.yaml or ~/.config/scene-fetch/config.yaml)")
	rootCmd.PersistentFlags().String("catalog", "", "STAC catalog API root (default: Planetary Computer)")
	rootCmd.PersistentFlags().String("signer", "", "SAS token service root (default: Planetary Computer)")
	rootCmd.PersistentFlags().String("log-level", "", "log verbosity: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scene-fetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scene-fetch"))
		}
	}

	viper.SetEnvPrefix("SCENE_FETCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// clientConfig assembles the client configuration: defaults, then the
// config file and environment, then flags, in increasing precedence.
func clientConfig() types.ClientConfig {
	cfg := types.DefaultClientConfig()
	cfg.LedgerPath = "scene-fetch.db"

	if v := viper.GetString("catalog_url"); v != "" {
		cfg.CatalogURL = v
	}
	if v := viper.GetString("signer_url"); v != "" {
		cfg.SignerURL = v
	}
	if v := viper.GetStringSlice("collections"); len(v) > 0 {
		cfg.Collections = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("ledger_path"); v != "" {
		cfg.LedgerPath = v
	}
	if v := viper.GetString("secrets_dir"); v != "" {
		cfg.SecretsDir = v
	}
	if v := viper.GetInt("max_items"); v > 0 {
		cfg.MaxItems = v
	}

	if v, _ := rootCmd.PersistentFlags().GetString("catalog"); v != "" {
		cfg.CatalogURL = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("signer"); v != "" {
		cfg.SignerURL = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	cfg.SubscriptionKey = loadedSecrets[secrets.SubscriptionKeyFile]
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
