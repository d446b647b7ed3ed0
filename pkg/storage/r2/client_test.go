package r2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type stubPutter struct {
	err   error
	calls []s3.PutObjectInput
}

func (s *stubPutter) PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.calls = append(s.calls, *input)
	if s.err != nil {
		return nil, s.err
	}
	return &s3.PutObjectOutput{}, nil
}

func imageServer(t *testing.T, status int, contentType string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, "image-bytes")
	}))
}

func TestOffloadImageReturnsPublicURL(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "image/png")
	defer srv.Close()

	putter := &stubPutter{}
	c := &Client{
		store:        putter,
		httpClient:   srv.Client(),
		bucket:       "adsboard-media",
		publicDomain: "https://media.example.com",
	}

	got := c.OffloadImage(context.Background(), "post_1", srv.URL+"/a.png")
	if got != "https://media.example.com/posts/post_1.png" {
		t.Fatalf("unexpected url %q", got)
	}
	if len(putter.calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(putter.calls))
	}
	if *putter.calls[0].Bucket != "adsboard-media" || *putter.calls[0].Key != "posts/post_1.png" {
		t.Fatalf("unexpected object target %q/%q", *putter.calls[0].Bucket, *putter.calls[0].Key)
	}
}

func TestOffloadImageFallsBackOnDownloadFailure(t *testing.T) {
	srv := imageServer(t, http.StatusNotFound, "")
	defer srv.Close()

	putter := &stubPutter{}
	c := &Client{store: putter, httpClient: srv.Client(), bucket: "b", publicDomain: "https://media.example.com"}

	source := srv.URL + "/missing.jpg"
	if got := c.OffloadImage(context.Background(), "post_1", source); got != source {
		t.Fatalf("expected source fallback, got %q", got)
	}
	if len(putter.calls) != 0 {
		t.Fatal("failed download must not reach storage")
	}
}

func TestOffloadImageFallsBackOnUploadFailure(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "image/jpeg")
	defer srv.Close()

	putter := &stubPutter{err: errors.New("bucket unavailable")}
	c := &Client{store: putter, httpClient: srv.Client(), bucket: "b", publicDomain: "https://media.example.com"}

	source := srv.URL + "/a.jpg"
	if got := c.OffloadImage(context.Background(), "post_1", source); got != source {
		t.Fatalf("expected source fallback, got %q", got)
	}
}

func TestOffloadImageSkipsEmptyInputs(t *testing.T) {
	c := &Client{}
	if got := c.OffloadImage(context.Background(), "post_1", ""); got != "" {
		t.Fatalf("empty source should pass through, got %q", got)
	}
	if got := c.OffloadImage(context.Background(), "", "https://x/a.jpg"); got != "https://x/a.jpg" {
		t.Fatalf("missing post id should pass through, got %q", got)
	}
}
