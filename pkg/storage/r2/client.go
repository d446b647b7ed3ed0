package r2

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/logger"
)

// maxImageBytes caps a single download; post images past this are left on
// the source CDN.
const maxImageBytes = 10 << 20

type objectPutter interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client copies post images from the source CDN into an S3-compatible
// bucket and hands back stable public URLs. Offloading is best effort: any
// failure falls back to the original URL so the pipeline never blocks on
// storage.
type Client struct {
	store        objectPutter
	httpClient   *http.Client
	bucket       string
	publicDomain string
	logger       *logger.Logger
}

// New builds the offload client; cfg.Enabled() must hold.
func New(ctx context.Context, cfg config.R2Config, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("r2 storage credentials are not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading storage credentials: %w", err)
	}

	store := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = true
	})

	return &Client{
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		bucket:       cfg.BucketName,
		publicDomain: strings.TrimRight(cfg.PublicDomain, "/"),
		logger:       logg,
	}, nil
}

// OffloadImage downloads sourceURL and stores it under a key derived from
// the post id. It returns the public URL of the stored copy, or sourceURL
// unchanged when anything goes wrong.
func (c *Client) OffloadImage(ctx context.Context, postID, sourceURL string) string {
	if c == nil || sourceURL == "" || postID == "" {
		return sourceURL
	}

	body, contentType, err := c.download(ctx, sourceURL)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, fmt.Sprintf("image download failed for post %s, keeping source url", postID))
		}
		return sourceURL
	}

	key := objectKey(postID, contentType)
	_, err = c.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         awstypes.ObjectCannedACLPublicRead,
	})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, fmt.Sprintf("image upload failed for post %s, keeping source url", postID))
		}
		return sourceURL
	}

	if c.publicDomain != "" {
		return c.publicDomain + "/" + key
	}
	return sourceURL
}

func (c *Client) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}

func objectKey(postID, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return "posts/" + postID + ext
}
