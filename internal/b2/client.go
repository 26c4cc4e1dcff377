package b2

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAuthorizeURL = "https://api.backblazeb2.com"
	apiVersionPath      = "/b2api/v2/"

	opAuthorizeAccount = "b2_authorize_account"
	opListBuckets      = "b2_list_buckets"
	opListFileNames    = "b2_list_file_names"
	opListFileVersions = "b2_list_file_versions"
)

type Config struct {
	AuthorizeURL string `yaml:"authorizeUrl" default:"https://api.backblazeb2.com"`
}

// Client talks to the B2 native API. Calls are plain request/response:
// no retries, no timeouts besides the ones of the passed context.
type Client struct {
	client *resty.Client
}

func NewClient(config Config) *Client {
	authorizeURL := config.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = DefaultAuthorizeURL
	}
	return &Client{
		client: resty.New().SetBaseURL(strings.TrimSuffix(authorizeURL, "/")),
	}
}

// Authorize exchanges an application key for a Session.
func (c *Client) Authorize(ctx context.Context, keyID, applicationKey string) (*Session, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(keyID, applicationKey).
		SetHeader("Accept", "application/json").
		Get(apiVersionPath + opAuthorizeAccount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opAuthorizeAccount, err)
	}

	var auth authorizeAccountResponse
	if err = decode(opAuthorizeAccount, res, &auth); err != nil {
		return nil, err
	}
	if auth.AuthorizationToken == "" || auth.APIURL == "" {
		return nil, fmt.Errorf("%s: response without token or api url", opAuthorizeAccount)
	}
	return &Session{
		AccountID: auth.AccountID,
		Token:     auth.AuthorizationToken,
		APIURL:    strings.TrimSuffix(auth.APIURL, "/"),
	}, nil
}

// ListBuckets lists the account's buckets, filtered by name when name is not empty.
func (c *Client) ListBuckets(ctx context.Context, session *Session, name string) ([]Bucket, error) {
	var out listBucketsResponse
	err := c.post(ctx, session, opListBuckets, listBucketsRequest{AccountID: session.AccountID, BucketName: name}, &out)
	if err != nil {
		return nil, err
	}
	return out.Buckets, nil
}

// ResolveBucket returns the id of the bucket with the given name or ErrBucketNotFound.
func (c *Client) ResolveBucket(ctx context.Context, session *Session, name string) (BucketRef, error) {
	buckets, err := c.ListBuckets(ctx, session, name)
	if err != nil {
		return BucketRef{}, err
	}
	for _, bucket := range buckets {
		if bucket.BucketName == name && bucket.BucketID != "" {
			return BucketRef{Name: name, ID: bucket.BucketID}, nil
		}
	}
	return BucketRef{}, fmt.Errorf("%q: %w", name, ErrBucketNotFound)
}

// ListFileNames returns one page of the current (live) files.
func (c *Client) ListFileNames(ctx context.Context, session *Session, req ListFilesRequest) (*ListFilesResponse, error) {
	req.StartFileID = "" // names are the only ordering axis here
	var out ListFilesResponse
	if err := c.post(ctx, session, opListFileNames, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFileVersions returns one page of all file versions, hide markers included.
func (c *Client) ListFileVersions(ctx context.Context, session *Session, req ListFilesRequest) (*ListFilesResponse, error) {
	var out ListFilesResponse
	if err := c.post(ctx, session, opListFileVersions, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, session *Session, op string, body, out any) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingSession)
	}
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", session.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(session.APIURL + apiVersionPath + op)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return decode(op, res, out)
}

func decode(op string, res *resty.Response, out any) error {
	if !res.IsSuccess() {
		apiErr := &APIError{Op: op, Status: res.StatusCode()}
		var body errorBody
		if json.Unmarshal(res.Body(), &body) == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("%s: malformed response: %w", op, err)
	}
	return nil
}
