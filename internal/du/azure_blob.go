package du

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type azureContainerAPI interface {
	listBlobs(ctx context.Context, containerName string, opts *azblob.ListBlobsFlatOptions) (blobs []*container.BlobItem, nextMarker *string, err error)
	containerExists(ctx context.Context, containerName string) error
}

// AzureBlobLister lists an Azure Blob Storage container as if it were a bucket.
// The container name doubles as the bucket id.
type AzureBlobLister struct {
	api azureContainerAPI
}

func NewAzureBlobLister(azureStorageConnectionString string) (*AzureBlobLister, error) {
	blobClient, err := azblob.NewClientFromConnectionString(azureStorageConnectionString, nil)
	if err != nil {
		return nil, err
	}
	return &AzureBlobLister{api: &azblobAPI{client: blobClient}}, nil
}

func (al *AzureBlobLister) ResolveBucket(ctx context.Context, name string) (Bucket, error) {
	if err := al.api.containerExists(ctx, name); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return Bucket{}, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		}
		return Bucket{}, err
	}
	return Bucket{Name: name, ID: name}, nil
}

// ListPage fetches a single page. In versions mode every blob version and soft deleted blob is included,
// the latter as delete markers.
func (al *AzureBlobLister) ListPage(ctx context.Context, req ListRequest) (*Page, error) {
	maxResults := int32(req.PageSize)
	opts := &azblob.ListBlobsFlatOptions{MaxResults: &maxResults}
	if req.Prefix != "" {
		opts.Prefix = &req.Prefix
	}
	if req.StartPath != "" {
		opts.Marker = &req.StartPath
	}
	if req.Versions {
		opts.Include = azblob.ListBlobsInclude{Versions: true, Deleted: true}
	}

	blobs, nextMarker, err := al.api.listBlobs(ctx, req.BucketID, opts)
	if err != nil {
		return nil, err
	}
	page := &Page{Entries: make([]Entry, 0, len(blobs))}
	for _, blob := range blobs {
		if blob == nil || blob.Name == nil {
			continue
		}
		entry := Entry{Path: *blob.Name}
		if blob.Properties != nil && blob.Properties.ContentLength != nil {
			entry.Size = *blob.Properties.ContentLength
		}
		if blob.Deleted != nil {
			entry.DeleteMarker = *blob.Deleted
		}
		page.Entries = append(page.Entries, entry)
	}
	if nextMarker != nil {
		page.NextPath = *nextMarker
	}
	return page, nil
}

type azblobAPI struct {
	client *azblob.Client
}

func (a *azblobAPI) listBlobs(ctx context.Context, containerName string, opts *azblob.ListBlobsFlatOptions) ([]*container.BlobItem, *string, error) {
	// a fresh pager per page, the marker in opts positions it
	pager := a.client.NewListBlobsFlatPager(containerName, opts)
	page, err := pager.NextPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	if page.Segment == nil {
		return nil, page.NextMarker, nil
	}
	return page.Segment.BlobItems, page.NextMarker, nil
}

func (a *azblobAPI) containerExists(ctx context.Context, containerName string) error {
	_, err := a.client.ServiceClient().NewContainerClient(containerName).GetProperties(ctx, nil)
	return err
}
