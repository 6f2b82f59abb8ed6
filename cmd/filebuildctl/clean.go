package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btrekkie/file-builder/engine"
)

func cleanMain(command *cobra.Command, arguments []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	var buildName *string
	if cleanConfiguration.buildName != "" {
		buildName = &cleanConfiguration.buildName
	}

	if err := engine.Clean(cleanConfiguration.cache, buildName, logger); err != nil {
		return err
	}
	fmt.Println("cleaned", cleanConfiguration.cache)
	return nil
}

var cleanCommand = &cobra.Command{
	Use:   "clean",
	Short: "Remove every file and directory a build created, along with its cache file",
	Args:  disallowArguments,
	Run:   mainify(cleanMain),
}

var cleanConfiguration struct {
	// cache is the path to the cache file to clean.
	cache string
	// buildName, if non-empty, verifies the cache file was built under that
	// name before touching anything.
	buildName string
}

func init() {
	flags := cleanCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&cleanConfiguration.cache, "cache", "build-cache.gz", "Path to the cache file to clean")
	flags.StringVar(&cleanConfiguration.buildName, "build-name", "", "Verify the cache file was built under this name")
}
