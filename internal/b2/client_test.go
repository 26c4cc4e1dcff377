package b2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeB2 struct {
	*httptest.Server
	buckets  []Bucket
	lastBody map[string]any
	lastOp   string
}

func newFakeB2(t *testing.T, buckets []Bucket) *fakeB2 {
	t.Helper()
	f := &fakeB2{buckets: buckets}
	mux := http.NewServeMux()
	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "app-key" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Status: 401, Code: "unauthorized", Message: "bad key"})
			return
		}
		writeJSON(w, http.StatusOK, authorizeAccountResponse{
			AccountID:          "account",
			AuthorizationToken: "token",
			APIURL:             f.URL + "/",
		})
	})
	for _, op := range []string{opListBuckets, opListFileNames, opListFileVersions} {
		mux.HandleFunc("/b2api/v2/"+op, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "token" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Status: 401, Code: "bad_auth_token", Message: "expired"})
				return
			}
			f.lastOp = op
			f.lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
			switch op {
			case opListBuckets:
				writeJSON(w, http.StatusOK, listBucketsResponse{Buckets: f.buckets})
			case opListFileNames:
				next := "b.txt"
				writeJSON(w, http.StatusOK, ListFilesResponse{
					Files:        []File{{FileName: "a.txt", ContentLength: 3, Action: ActionUpload}},
					NextFileName: &next,
				})
			case opListFileVersions:
				writeJSON(w, http.StatusOK, ListFilesResponse{
					Files: []File{
						{FileName: "a.txt", ContentLength: 3, Action: ActionUpload, FileID: "1"},
						{FileName: "a.txt", ContentLength: 0, Action: ActionHide, FileID: "2"},
					},
				})
			}
		})
	}
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Authorize(t *testing.T) {
	f := newFakeB2(t, nil)
	c := NewClient(Config{AuthorizeURL: f.URL})

	session, err := c.Authorize(context.Background(), "key-id", "app-key")
	require.NoError(t, err)
	assert.Equal(t, "account", session.AccountID)
	assert.Equal(t, "token", session.Token)
	assert.Equal(t, f.URL, session.APIURL)

	_, err = c.Authorize(context.Background(), "key-id", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
}

func TestClient_ResolveBucket(t *testing.T) {
	tests := []struct {
		name     string
		buckets  []Bucket
		bucket   string
		wantID   string
		notFound bool
	}{{
		name:    "found",
		buckets: []Bucket{{BucketName: "other", BucketID: "x"}, {BucketName: "photos", BucketID: "id-1"}},
		bucket:  "photos",
		wantID:  "id-1",
	}, {
		name:     "missing",
		buckets:  []Bucket{{BucketName: "other", BucketID: "x"}},
		bucket:   "photos",
		notFound: true,
	}, {
		name:     "empty id",
		buckets:  []Bucket{{BucketName: "photos"}},
		bucket:   "photos",
		notFound: true,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeB2(t, tt.buckets)
			c := NewClient(Config{AuthorizeURL: f.URL})
			session, err := c.Authorize(context.Background(), "key-id", "app-key")
			require.NoError(t, err)

			ref, err := c.ResolveBucket(context.Background(), session, tt.bucket)
			if tt.notFound {
				require.Error(t, err)
				assert.True(t, IsBucketNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, BucketRef{Name: tt.bucket, ID: tt.wantID}, ref)
			assert.Equal(t, "account", f.lastBody["accountId"])
			assert.Equal(t, tt.bucket, f.lastBody["bucketName"])
		})
	}
}

func TestClient_ListFiles(t *testing.T) {
	f := newFakeB2(t, nil)
	c := NewClient(Config{AuthorizeURL: f.URL})
	session, err := c.Authorize(context.Background(), "key-id", "app-key")
	require.NoError(t, err)

	req := ListFilesRequest{BucketID: "id-1", Prefix: "docs/", MaxFileCount: 1000, StartFileName: "a", StartFileID: "7"}

	names, err := c.ListFileNames(context.Background(), session, req)
	require.NoError(t, err)
	assert.Equal(t, opListFileNames, f.lastOp)
	assert.NotContains(t, f.lastBody, "startFileId")
	assert.Equal(t, "docs/", f.lastBody["prefix"])
	assert.EqualValues(t, 1000, f.lastBody["maxFileCount"])
	require.Len(t, names.Files, 1)
	require.NotNil(t, names.NextFileName)
	assert.Equal(t, "b.txt", *names.NextFileName)

	versions, err := c.ListFileVersions(context.Background(), session, req)
	require.NoError(t, err)
	assert.Equal(t, opListFileVersions, f.lastOp)
	assert.Equal(t, "7", f.lastBody["startFileId"])
	require.Len(t, versions.Files, 2)
	assert.True(t, versions.Files[1].IsHideMarker())
	assert.Nil(t, versions.NextFileName)
}

func TestClient_RequiresSession(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.ListBuckets(context.Background(), nil, "photos")
	require.ErrorIs(t, err, ErrMissingSession)
}

func TestClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(Config{AuthorizeURL: srv.URL}).Authorize(context.Background(), "key-id", "app-key")
	require.ErrorContains(t, err, "malformed response")
}
