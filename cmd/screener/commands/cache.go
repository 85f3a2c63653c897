package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the run cache",
	Long: `Inspects or clears the file-backed run cache.

Example:
  go run ./cmd/screener cache list
  go run ./cmd/screener cache clear`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached run records",
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached run records",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	entries, err := os.ReadDir(rt.cfg.Cache.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Cache is empty")
			return nil
		}
		return err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fmt.Printf("%s  %8d bytes  %s\n",
			strings.TrimSuffix(entry.Name(), ".json"),
			info.Size(),
			info.ModTime().Format("2006-01-02 15:04:05"))
		count++
	}
	if count == 0 {
		fmt.Println("Cache is empty")
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	entries, err := os.ReadDir(rt.cfg.Cache.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Cache is empty")
			return nil
		}
		return err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(rt.cfg.Cache.Dir, entry.Name())); err != nil {
			return fmt.Errorf("remove cache record %s: %w", entry.Name(), err)
		}
		removed++
	}
	fmt.Printf("Removed %d cache records\n", removed)
	return nil
}
