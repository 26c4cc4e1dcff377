// Package b2 is a minimal client for the Backblaze B2 native API.
//
// Only the calls needed to list a bucket's files are implemented: account
// authorization, bucket listing and the two file listing variants.
package b2

const (
	// ActionUpload marks a stored file version.
	ActionUpload = "upload"
	// ActionHide marks a hide marker: a logical deletion record without content.
	ActionHide = "hide"
	// ActionStart marks an unfinished large file upload.
	ActionStart = "start"
	// ActionFolder is only returned when listing with a delimiter.
	ActionFolder = "folder"
)

// Session is the result of an account authorization.
// It is created once and read-only afterwards.
type Session struct {
	AccountID string
	Token     string
	APIURL    string
}

// BucketRef is a bucket resolved from its name.
type BucketRef struct {
	Name string
	ID   string
}

type Bucket struct {
	AccountID  string `json:"accountId"`
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
	BucketType string `json:"bucketType"`
}

type File struct {
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
	ContentLength   int64  `json:"contentLength"`
	Action          string `json:"action"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
}

// IsHideMarker reports whether f records a deletion instead of file content.
func (f File) IsHideMarker() bool {
	return f.Action == ActionHide
}

// ListFilesRequest is the body of b2_list_file_names and b2_list_file_versions.
// StartFileID is only sent to b2_list_file_versions.
type ListFilesRequest struct {
	BucketID      string `json:"bucketId"`
	Prefix        string `json:"prefix,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	StartFileName string `json:"startFileName,omitempty"`
	StartFileID   string `json:"startFileId,omitempty"`
}

type ListFilesResponse struct {
	Files        []File  `json:"files"`
	NextFileName *string `json:"nextFileName"`
	NextFileID   *string `json:"nextFileId"`
}

type authorizeAccountResponse struct {
	AccountID          string `json:"accountId"`
	AuthorizationToken string `json:"authorizationToken"`
	APIURL             string `json:"apiUrl"`
	DownloadURL        string `json:"downloadUrl"`
}

type listBucketsRequest struct {
	AccountID  string `json:"accountId"`
	BucketName string `json:"bucketName,omitempty"`
}

type listBucketsResponse struct {
	Buckets []Bucket `json:"buckets"`
}
