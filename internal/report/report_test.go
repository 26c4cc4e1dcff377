package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/PDOK/bucket-usage-auditor/internal/du"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		ScanID: "scan-1",
		Bucket: "photos",
		Prefix: "docs/",
		Result: &du.Result{
			Folders: []du.FolderUsage{
				{Folder: "docs/img/", Bytes: 30, Files: 1},
				{Folder: "docs/", Bytes: 1536, Files: 1234},
				{Folder: "", Bytes: 10, Files: 1},
			},
			TotalBytes: 1576,
			TotalFiles: 1236,
		},
		Elapsed: 1234567 * time.Microsecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{in: "text", want: Text},
		{in: "json", want: JSON},
		{in: "JSON", want: JSON},
		{in: "csv", want: CSV},
		{in: "", want: Text},
		{in: "xml", want: Text},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFormat(tt.in))
		})
	}
}

func TestWrite_JSONRoundTrip(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, r))

	var got JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, r.Result.Folders, got.Folders)
	assert.Equal(t, r.Result.TotalBytes, got.TotalBytes)
	assert.Equal(t, r.Result.TotalFiles, got.TotalFiles)
	assert.Equal(t, "photos", got.Bucket)
	assert.Equal(t, "docs/", got.Prefix)
	assert.Equal(t, "scan-1", got.ScanID)
	assert.InDelta(t, 1.23, got.ElapsedSeconds, 1e-9)
}

func TestWrite_JSONEmptyFolders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, Report{Bucket: "b", Result: &du.Result{}}))
	assert.Contains(t, buf.String(), `"folders": []`)
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, sampleReport()))
	assert.Equal(t, "folder,size_bytes,file_count\n"+
		"docs/img/,30,1\n"+
		"docs/,1536,1234\n"+
		",10,1\n", buf.String())
}

func TestWrite_CSVDoesNotEscapeCommas(t *testing.T) {
	r := Report{Result: &du.Result{Folders: []du.FolderUsage{{Folder: "a,b/", Bytes: 5, Files: 2}}}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a,b/,5,2", lines[1])
	// a naive split sees four fields where the header declares three
	assert.Len(t, strings.Split(lines[1], ","), 4)
	assert.Len(t, strings.Split(lines[0], ","), 3)
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Text, sampleReport()))
	out := buf.String()

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "docs/img/"+strings.Repeat(" ", folderColumnWidth-len("docs/img/")+1)))
	assert.Contains(t, lines[0], "30 B")
	assert.Contains(t, lines[1], "1.5 KB")
	assert.Contains(t, lines[1], "1,234 files")
	assert.True(t, strings.HasPrefix(lines[2], rootFolderLabel))
	assert.Contains(t, out, "Folders:     3\n")
	assert.Contains(t, out, "Total files: 1,236\n")
	assert.Contains(t, out, "Total size:  1.54 KB\n")
	assert.Contains(t, out, "Elapsed:     1.23s\n")
}

func TestFolderColumn(t *testing.T) {
	long := strings.Repeat("x", folderColumnWidth+10) + "/"
	got := folderColumn(long)
	assert.Len(t, got, folderColumnWidth)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short/", folderColumn("short/"))

	multiByte := strings.Repeat("é", folderColumnWidth+5) + "/"
	got = folderColumn(multiByte)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, folderColumnWidth, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", folderColumnWidth-3)+"...", got)
	exact := strings.Repeat("ü", folderColumnWidth)
	assert.Equal(t, exact, folderColumn(exact))
	assert.Equal(t, rootFolderLabel, folderColumn(""))
}
