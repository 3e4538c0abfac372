package cmd

import (
	"fmt"
	"time"

	"github.com/glowcase/glowcase/internal/config"
	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the gallery index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the gallery index and write a snapshot",
	Long: `Scan the gallery before/ directory, embed every image through the
face embedding server, join the scraped metadata and write the index
snapshot. Images without a detectable face are skipped.`,
	RunE: runIndexBuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current snapshot metadata",
	RunE:  runIndexInfo,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInfoCmd)
}

// newBuildProgressBar creates the progress bar driven by Builder.OnProgress.
func newBuildProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Embedding gallery"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	provider := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.MaxImageSize)
	store := gallery.NewStore()
	builder := gallery.NewBuilder(provider, store, cfg.Gallery.Dir, cfg.Gallery.MetadataPath, cfg.Gallery.SnapshotPath)
	builder.ExpectedDim = cfg.Embedding.Dim

	var bar *progressbar.ProgressBar
	builder.OnProgress = func(done, total int) {
		if bar == nil {
			bar = newBuildProgressBar(total)
		}
		_ = bar.Set(done)
	}

	idx, stats, err := builder.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("building gallery index: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Indexed %d records (dim %d) in %s\n", idx.Len(), idx.Dim(), stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Metadata entries: %d\n", stats.MetadataEntries)
	if stats.NoFace > 0 {
		fmt.Printf("  Skipped (no face): %d\n", stats.NoFace)
	}
	if stats.Failed > 0 {
		fmt.Printf("  Skipped (errors):  %d\n", stats.Failed)
	}
	if stats.DimMismatch > 0 {
		fmt.Printf("  Excluded (dim mismatch): %d\n", stats.DimMismatch)
	}
	if stats.BeforeDirMissing {
		fmt.Println("  Warning: before directory missing, index is empty")
	}
	fmt.Printf("Snapshot written to %s\n", cfg.Gallery.SnapshotPath)
	return nil
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	info, err := gallery.ReadSnapshotInfo(cfg.Gallery.SnapshotPath)
	if err != nil {
		return fmt.Errorf("reading snapshot metadata: %w", err)
	}

	fmt.Printf("Snapshot: %s\n", cfg.Gallery.SnapshotPath)
	fmt.Printf("  Records: %d\n", info.RecordCount)
	fmt.Printf("  Dim:     %d\n", info.Dim)
	fmt.Printf("  Built:   %s\n", info.BuiltAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Version: %d\n", info.Version)
	return nil
}
