package du

import (
	"context"
	"fmt"

	"github.com/PDOK/bucket-usage-auditor/internal/b2"
)

type b2API interface {
	ResolveBucket(ctx context.Context, session *b2.Session, name string) (b2.BucketRef, error)
	ListFileNames(ctx context.Context, session *b2.Session, req b2.ListFilesRequest) (*b2.ListFilesResponse, error)
	ListFileVersions(ctx context.Context, session *b2.Session, req b2.ListFilesRequest) (*b2.ListFilesResponse, error)
}

// B2Lister lists a Backblaze B2 bucket with an authorized session
type B2Lister struct {
	api     b2API
	session *b2.Session
}

// NewB2Lister authorizes with the application key and returns a lister bound to that session
func NewB2Lister(ctx context.Context, client *b2.Client, keyID, applicationKey string) (*B2Lister, error) {
	session, err := client.Authorize(ctx, keyID, applicationKey)
	if err != nil {
		return nil, err
	}
	return &B2Lister{api: client, session: session}, nil
}

func (bl *B2Lister) ResolveBucket(ctx context.Context, name string) (Bucket, error) {
	ref, err := bl.api.ResolveBucket(ctx, bl.session, name)
	if err != nil {
		if b2.IsBucketNotFound(err) {
			return Bucket{}, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		}
		return Bucket{}, err
	}
	return Bucket{Name: ref.Name, ID: ref.ID}, nil
}

// ListPage calls b2_list_file_versions when req.Versions is set, b2_list_file_names otherwise
func (bl *B2Lister) ListPage(ctx context.Context, req ListRequest) (*Page, error) {
	listReq := b2.ListFilesRequest{
		BucketID:      req.BucketID,
		Prefix:        req.Prefix,
		MaxFileCount:  req.PageSize,
		StartFileName: req.StartPath,
	}
	var (
		res *b2.ListFilesResponse
		err error
	)
	if req.Versions {
		listReq.StartFileID = req.StartID
		res, err = bl.api.ListFileVersions(ctx, bl.session, listReq)
	} else {
		res, err = bl.api.ListFileNames(ctx, bl.session, listReq)
	}
	if err != nil {
		return nil, err
	}

	page := &Page{Entries: make([]Entry, 0, len(res.Files))}
	for _, file := range res.Files {
		page.Entries = append(page.Entries, Entry{
			Path:         file.FileName,
			Size:         file.ContentLength,
			DeleteMarker: file.IsHideMarker(),
		})
	}
	if res.NextFileName != nil {
		page.NextPath = *res.NextFileName
	}
	if res.NextFileID != nil {
		page.NextID = *res.NextFileID
	}
	return page, nil
}
