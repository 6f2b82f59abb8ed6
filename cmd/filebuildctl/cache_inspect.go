package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/btrekkie/file-builder/cache"
)

func cacheInspectMain(command *cobra.Command, arguments []string) error {
	path := arguments[0]

	loaded, err := cache.ReadImmutable(path)
	if err != nil {
		return err
	}

	files := loaded.CreatedFiles()
	sort.Strings(files)
	fmt.Printf("created files (%d):\n", len(files))
	for _, f := range files {
		fmt.Println(" ", f)
	}

	dirs := loaded.CreatedDirs()
	sort.Strings(dirs)
	fmt.Printf("created directories (%d):\n", len(dirs))
	for _, d := range dirs {
		fmt.Println(" ", d)
	}
	return nil
}

var cacheInspectCommand = &cobra.Command{
	Use:   "inspect <cache-file>",
	Short: "List the files and directories a cache file says it created",
	Args:  cobra.ExactArgs(1),
	Run:   mainify(cacheInspectMain),
}
