// Package s3catalog exposes an S3 (or MinIO) bucket prefix as a media
// catalog. Object keys are the catalog keys.
package s3catalog

import (
	"context"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

// API is the part of *s3.Client the catalog uses.
type API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options describes how to reach the bucket.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	Prefix       string
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// NewClient builds a path-style S3 client with static credentials, suitable
// for MinIO and AWS alike.
func NewClient(ctx context.Context, o Options) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		so.UsePathStyle = true
	}), nil
}

type Catalog struct {
	client  API
	presign *s3.PresignClient
	bucket  string
	prefix  string

	mu    sync.RWMutex
	index map[int64]string
}

func New(client API, bucket, prefix string) *Catalog {
	c := &Catalog{
		client: client,
		bucket: bucket,
		prefix: strings.TrimPrefix(prefix, "/"),
		index:  make(map[int64]string),
	}
	if sc, ok := client.(*s3.Client); ok {
		c.presign = s3.NewPresignClient(sc)
	}
	return c
}

// ScanAll lists every object under the prefix. A failed page fails the
// whole scan.
func (c *Catalog) ScanAll(ctx context.Context) ([]models.CatalogEntry, error) {
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})

	var entries []models.CatalogEntry
	index := make(map[int64]string)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", c.bucket, c.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			e := c.describe(key, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified))
			entries = append(entries, e)
			index[e.ID] = key
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return entries, nil
}

func (c *Catalog) describe(key string, size int64, modified time.Time) models.CatalogEntry {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, c.prefix), "/")
	bucket := path.Base(path.Dir(key))
	if bucket == "." || bucket == "/" {
		bucket = c.bucket
	}
	mt, _, _ := strings.Cut(mime.TypeByExtension(path.Ext(key)), ";")
	if mt == "" {
		mt = "application/octet-stream"
	}
	return models.CatalogEntry{
		ID:           catalog.IDFromKey(rel),
		URI:          "s3://" + c.bucket + "/" + key,
		DisplayName:  path.Base(key),
		DateAdded:    modified.Unix(),
		DateModified: modified.Unix(),
		Size:         size,
		MIMEType:     mt,
		Bucket:       bucket,
		Path:         key,
	}
}

// Delete removes the object behind id. S3 deletes are idempotent, and ids
// unknown after a rescan are treated as already gone.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	key, err := c.resolve(ctx, id)
	if err != nil || key == "" {
		return err
	}

	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", c.bucket, key, err)
	}

	c.mu.Lock()
	delete(c.index, id)
	c.mu.Unlock()
	return nil
}

// Locate returns a short-lived presigned GET URL for the object.
func (c *Catalog) Locate(ctx context.Context, id int64) (string, error) {
	if c.presign == nil {
		return "", fmt.Errorf("presigning is not available for this client")
	}
	key, err := c.resolve(ctx, id)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("object %d not found", id)
	}
	req, err := presignGetObject(c.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", c.bucket, key, err)
	}
	return req.URL, nil
}

func (c *Catalog) resolve(ctx context.Context, id int64) (string, error) {
	if key, ok := c.lookup(id); ok {
		return key, nil
	}
	if _, err := c.ScanAll(ctx); err != nil {
		return "", catalog.Unavailable(err)
	}
	key, _ := c.lookup(id)
	return key, nil
}

func (c *Catalog) lookup(id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.index[id]
	return k, ok
}
