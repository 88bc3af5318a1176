// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/cache"
	"github.com/stylus-tools/stylus-trace/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local raw-trace cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached trace count",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Cache at %s holds %d trace(s)\n", cfg.CachePath, n)
		return nil
	},
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Remove all cached traces",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Flush(); err != nil {
			return err
		}
		fmt.Println("Trace cache flushed")
		return nil
	},
}

func openCache() (*cache.Store, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}
