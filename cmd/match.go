package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/glowcase/glowcase/internal/config"
	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match [photo]",
	Short: "Find the gallery entries most similar to a photo",
	Long: `Embed a face photo and print the most similar gallery entries.
The index is restored from the snapshot when available, otherwise it is
built first, which requires the embedding server and can take a while.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Int("top", 3, "Number of matches to print")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	provider := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.MaxImageSize)
	store := gallery.NewStore()
	builder := gallery.NewBuilder(provider, store, cfg.Gallery.Dir, cfg.Gallery.MetadataPath, cfg.Gallery.SnapshotPath)
	builder.ExpectedDim = cfg.Embedding.Dim

	restored, err := builder.Restore()
	if err != nil {
		return fmt.Errorf("restoring gallery index: %w", err)
	}
	if !restored {
		fmt.Println("No snapshot found, building the gallery index first...")
		if _, _, err := builder.Build(cmd.Context()); err != nil {
			return fmt.Errorf("building gallery index: %w", err)
		}
	}

	vector, err := provider.Embed(cmd.Context(), data, true)
	if err != nil {
		return fmt.Errorf("embedding photo: %w", err)
	}

	results, err := gallery.Match(vector, store.Current(), mustGetInt(cmd, "top"))
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}

	for i, scored := range results {
		rec := scored.Record
		fmt.Printf("%d. %s (similarity %.3f)\n", i+1, rec.ID, scored.Similarity)
		fmt.Printf("   before: %s\n", rec.BeforePath)
		if rec.AfterPath != "" {
			fmt.Printf("   after:  %s\n", rec.AfterPath)
		}
		if len(rec.Meta) > 0 {
			keys := make([]string, 0, len(rec.Meta))
			for k := range rec.Meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("   %s: %s\n", k, rec.Meta[k])
			}
		}
	}
	return nil
}
