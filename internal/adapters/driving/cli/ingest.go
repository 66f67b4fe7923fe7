package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/connectors/filesystem"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
	"github.com/custodia-labs/obra/internal/core/services"
)

var (
	ingestWatch   bool
	ingestReplace bool
	ingestFilters filterFlags
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index price documents",
	Long: `Reads, chunks, embeds and stores files so they can be searched.

Accepted formats: ` + strings.Join(services.SupportedExtensions(), " ") + `.
Directories are walked recursively; hidden entries are skipped. A file that
fails is reported and never stops the others.

With --watch the command keeps running and re-indexes files in the given
directories whenever they are created, modified or deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching directories for changes")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace documents already indexed from the same path")
	ingestFilters.register(ingestCmd.Flags())
	rootCmd.AddCommand(ingestCmd)
}

// acceptSupported accepts files with an ingestible extension.
func acceptSupported(path string) bool {
	_, ok := services.MIMETypeForPath(path)
	return ok
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	var paths []string
	for _, arg := range args {
		found, err := filesystem.Scan(arg, acceptSupported)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}

	ctx := cmd.Context()
	meta := ingestFilters.metadata(cmd)

	if ingestReplace {
		for _, p := range paths {
			if err := removeByPath(ctx, p); err != nil {
				return err
			}
		}
	}

	failed := 0
	if len(paths) > 0 {
		reqs := make([]driving.IngestRequest, len(paths))
		for i, p := range paths {
			reqs[i] = driving.IngestRequest{Path: p, Metadata: meta}
		}
		for _, r := range documentService.IngestBatch(ctx, reqs) {
			if !reportIngest(cmd, r) {
				failed++
			}
		}
		cmd.Printf("Indexed %d of %d files.\n", len(paths)-failed, len(paths))
	} else {
		cmd.Println("No supported files found.")
	}

	if ingestWatch {
		return watchDirectories(cmd, args, meta)
	}
	if failed > 0 {
		return fmt.Errorf("%d files failed", failed)
	}
	return nil
}

// reportIngest prints one result and reports whether it succeeded.
func reportIngest(cmd *cobra.Command, r driving.IngestResult) bool {
	if r.Err != nil {
		cmd.Printf("  FAILED %s: %v\n", r.Path, userError(r.Err))
		return false
	}
	cmd.Printf("  ok     %s (%d chunks)\n", r.Path, r.Document.ChunkCount)
	return true
}

// removeByPath deletes every document previously indexed from path.
func removeByPath(ctx context.Context, path string) error {
	docs, err := documentService.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		if d.Path != path {
			continue
		}
		if err := documentService.Delete(ctx, d.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("remove %s: %w", d.ID, err)
		}
	}
	return nil
}

// watchDirectories re-indexes changed files until interrupted.
func watchDirectories(cmd *cobra.Command, roots []string, meta domain.DocumentMetadata) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	merged := make(chan filesystem.Change)
	watching := 0
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		w, err := filesystem.NewWatcher(root, acceptSupported, 0)
		if err != nil {
			return err
		}
		changes, err := w.Watch(ctx)
		if err != nil {
			return err
		}
		watching++
		go func() {
			for c := range changes {
				select {
				case merged <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	if watching == 0 {
		return errors.New("--watch needs at least one directory")
	}

	cmd.Printf("Watching %d directories, press Ctrl+C to stop.\n", watching)
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped watching.")
			return nil
		case c := <-merged:
			handleChange(ctx, cmd, c, meta)
		}
	}
}

func handleChange(ctx context.Context, cmd *cobra.Command, c filesystem.Change, meta domain.DocumentMetadata) {
	if err := removeByPath(ctx, c.Path); err != nil {
		cmd.Printf("  FAILED %s: %v\n", c.Path, err)
		return
	}
	if c.Type == filesystem.ChangeDeleted {
		cmd.Printf("  removed %s\n", c.Path)
		return
	}
	doc, err := documentService.Ingest(ctx, driving.IngestRequest{Path: c.Path, Metadata: meta})
	reportIngest(cmd, driving.IngestResult{Path: c.Path, Document: doc, Err: err})
}
