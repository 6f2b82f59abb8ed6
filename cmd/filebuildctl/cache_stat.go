package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/btrekkie/file-builder/cache"
)

func cacheStatMain(command *cobra.Command, arguments []string) error {
	path := arguments[0]

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	loaded, err := cache.ReadImmutable(path)
	if err != nil {
		return err
	}

	fmt.Printf("build name:      %s\n", loaded.BuildName())
	fmt.Printf("cache file size: %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Printf("created files:   %d\n", len(loaded.CreatedFiles()))
	fmt.Printf("created dirs:    %d\n", len(loaded.CreatedDirs()))
	return nil
}

var cacheStatCommand = &cobra.Command{
	Use:   "stat <cache-file>",
	Short: "Print summary statistics about a cache file",
	Args:  cobra.ExactArgs(1),
	Run:   mainify(cacheStatMain),
}
