// Package du is the link between cloud storage and du (disk usage) data
package du

import (
	"context"
	"errors"
)

// StorageUsage is storage usage/size in bytes
type StorageUsage = int64

// PageSize is the number of entries requested per listing page
const PageSize = 1000

// Separator splits a path into folders
const Separator = "/"

var ErrBucketNotFound = errors.New("bucket not found")

// Bucket is a bucket resolved from its human-readable name to the provider's id
type Bucket struct {
	Name string
	ID   string
}

// Entry is a single row of a listing page. It is consumed right away and never retained.
type Entry struct {
	Path         string
	Size         StorageUsage
	DeleteMarker bool
}

// ListRequest asks for one listing page.
// StartID is only meaningful when Versions is set.
type ListRequest struct {
	BucketID  string
	Prefix    string
	PageSize  int
	StartPath string
	StartID   string
	Versions  bool
}

// Page is one page of listing entries plus the markers to resume from.
// An empty NextPath means the listing is exhausted.
type Page struct {
	Entries  []Entry
	NextPath string
	NextID   string
}

// Lister provides listing pages from a cloud storage provider
type Lister interface {
	ListPage(ctx context.Context, req ListRequest) (*Page, error)
}

// BucketResolver resolves a bucket name, returning ErrBucketNotFound if there is no such bucket
type BucketResolver interface {
	ResolveBucket(ctx context.Context, name string) (Bucket, error)
}

// Storage is what a scan needs from a provider
type Storage interface {
	Lister
	BucketResolver
}
