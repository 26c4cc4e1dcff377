package du

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/PDOK/bucket-usage-auditor/internal/logger"
)

// FolderUsage is the aggregated size and file count of one folder key
type FolderUsage struct {
	Folder string       `json:"folder"`
	Bytes  StorageUsage `json:"size_bytes"`
	Files  int64        `json:"file_count"`
}

// Result is the outcome of a complete scan
type Result struct {
	Folders    []FolderUsage
	TotalBytes StorageUsage
	TotalFiles int64
}

type ScanOptions struct {
	Prefix          string
	IncludeVersions bool
	// Progress is called for every entry that is counted. It must not modify anything the scan depends on.
	Progress func(Entry)
}

// FolderKey returns the path up to and including the last separator, or "" if there is none
func FolderKey(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i+len(Separator)]
}

// Aggregate accumulates entries per folder key
type Aggregate struct {
	folders map[string]*FolderUsage
}

func NewAggregate() *Aggregate {
	return &Aggregate{folders: make(map[string]*FolderUsage)}
}

// Add counts the entry in its folder. Callers filter out entries that must not be counted.
func (a *Aggregate) Add(entry Entry) {
	key := FolderKey(entry.Path)
	folder, ok := a.folders[key]
	if !ok {
		folder = &FolderUsage{Folder: key}
		a.folders[key] = folder
	}
	folder.Bytes += entry.Size
	folder.Files++
}

// Result finalizes the aggregate, largest folders first
func (a *Aggregate) Result() *Result {
	result := &Result{Folders: make([]FolderUsage, 0, len(a.folders))}
	for _, folder := range a.folders {
		result.Folders = append(result.Folders, *folder)
		result.TotalBytes += folder.Bytes
		result.TotalFiles += folder.Files
	}
	slices.SortFunc(result.Folders, func(x, y FolderUsage) int {
		if c := cmp.Compare(y.Bytes, x.Bytes); c != 0 {
			return c
		}
		return strings.Compare(x.Folder, y.Folder)
	})
	return result
}

// Pages yields listing pages on demand until a page comes without a next path marker.
// Iteration stops at the first error, which is yielded with a nil page.
func Pages(ctx context.Context, lister Lister, req ListRequest) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		for {
			page, err := lister.ListPage(ctx, req)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if page.NextPath == "" {
				return
			}
			req.StartPath = page.NextPath
			if req.Versions {
				req.StartID = page.NextID
			}
		}
	}
}

// Scan lists the whole bucket (or prefix) and aggregates size and count per folder key.
// On error nothing of the partial aggregate is returned.
func Scan(ctx context.Context, lister Lister, bucket Bucket, opts ScanOptions) (*Result, error) {
	log := logger.Log.With().Str("bucket", bucket.Name).Str("prefix", opts.Prefix).Logger()
	log.Debug().Bool("versions", opts.IncludeVersions).Msg("start scanning")

	req := ListRequest{
		BucketID: bucket.ID,
		Prefix:   opts.Prefix,
		PageSize: PageSize,
		Versions: opts.IncludeVersions,
	}
	aggregate := NewAggregate()
	pages := 0
	for page, err := range Pages(ctx, lister, req) {
		if err != nil {
			return nil, fmt.Errorf("listing page %d of bucket %s: %w", pages+1, bucket.Name, err)
		}
		pages++
		for _, entry := range page.Entries {
			if strings.HasSuffix(entry.Path, Separator) { // folder placeholder
				continue
			}
			if opts.IncludeVersions && entry.DeleteMarker {
				continue
			}
			aggregate.Add(entry)
			if opts.Progress != nil {
				opts.Progress(entry)
			}
		}
	}

	result := aggregate.Result()
	log.Debug().Int("pages", pages).Int64("files", result.TotalFiles).Msg("done scanning")
	return result, nil
}
