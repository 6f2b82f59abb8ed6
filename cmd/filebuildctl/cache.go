package main

import (
	"github.com/spf13/cobra"
)

var cacheCommand = &cobra.Command{
	Use:   "cache",
	Short: "Inspect a cache file's contents",
}

func init() {
	cacheCommand.AddCommand(
		cacheStatCommand,
		cacheInspectCommand,
	)
}
