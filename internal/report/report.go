// Package report renders a scan result as text, JSON or CSV
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PDOK/bucket-usage-auditor/internal/du"
	"github.com/dustin/go-humanize"
)

type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"

	folderColumnWidth = 50
	rootFolderLabel   = "(root)"
	csvHeader         = "folder,size_bytes,file_count"
)

// ParseFormat maps an --output value to a Format. Anything unknown is Text.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV:
		return f
	default:
		return Text
	}
}

// Report is everything that ends up in the output
type Report struct {
	ScanID  string
	Bucket  string
	Prefix  string
	Result  *du.Result
	Elapsed time.Duration
}

// JSONReport is the json output document
type JSONReport struct {
	ScanID         string           `json:"scan_id,omitempty"`
	Bucket         string           `json:"bucket"`
	Prefix         string           `json:"prefix"`
	Folders        []du.FolderUsage `json:"folders"`
	TotalFiles     int64            `json:"total_files"`
	TotalBytes     int64            `json:"total_bytes"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
}

func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case JSON:
		return writeJSON(w, r)
	case CSV:
		return writeCSV(w, r)
	default:
		return writeText(w, r)
	}
}

func writeText(w io.Writer, r Report) error {
	var sb strings.Builder
	for _, folder := range r.Result.Folders {
		fmt.Fprintf(&sb, "%-*s %12s %12s files\n",
			folderColumnWidth, folderColumn(folder.Folder), FormatBytes(folder.Bytes), humanize.Comma(folder.Files))
	}
	sb.WriteString(strings.Repeat("-", folderColumnWidth+32) + "\n")
	fmt.Fprintf(&sb, "Folders:     %s\n", humanize.Comma(int64(len(r.Result.Folders))))
	fmt.Fprintf(&sb, "Total files: %s\n", humanize.Comma(r.Result.TotalFiles))
	fmt.Fprintf(&sb, "Total size:  %s\n", FormatBytes(r.Result.TotalBytes))
	fmt.Fprintf(&sb, "Elapsed:     %.2fs\n", r.Elapsed.Seconds())
	_, err := io.WriteString(w, sb.String())
	return err
}

func folderColumn(folder string) string {
	if folder == "" {
		return rootFolderLabel
	}
	if runes := []rune(folder); len(runes) > folderColumnWidth {
		return string(runes[:folderColumnWidth-3]) + "..."
	}
	return folder
}

func writeJSON(w io.Writer, r Report) error {
	folders := r.Result.Folders
	if folders == nil {
		folders = []du.FolderUsage{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(JSONReport{
		ScanID:         r.ScanID,
		Bucket:         r.Bucket,
		Prefix:         r.Prefix,
		Folders:        folders,
		TotalFiles:     r.Result.TotalFiles,
		TotalBytes:     r.Result.TotalBytes,
		ElapsedSeconds: math.Round(r.Elapsed.Seconds()*100) / 100,
	})
}

// writeCSV joins fields with commas as is. Folder names containing a comma are not quoted.
func writeCSV(w io.Writer, r Report) error {
	var sb strings.Builder
	sb.WriteString(csvHeader + "\n")
	for _, folder := range r.Result.Folders {
		sb.WriteString(strings.Join([]string{
			folder.Folder,
			strconv.FormatInt(folder.Bytes, 10),
			strconv.FormatInt(folder.Files, 10),
		}, ",") + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
