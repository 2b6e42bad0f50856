package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"previewsync/internal/fileset"
)

// ErrNotFound is returned when no archived snapshot exists for the key.
var ErrNotFound = errors.New("snapshot: not found")

// Archive is the long-term checkpoint archive: every checkpoint's full file
// set is stored as one JSON object so old versions stay retrievable after the
// baseline row moves on.
type Archive interface {
	Put(ctx context.Context, documentID, checkpointID string, files []fileset.File) error
	Get(ctx context.Context, documentID, checkpointID string) ([]fileset.File, error)
	List(ctx context.Context, documentID string) ([]string, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) Put(ctx context.Context, documentID, checkpointID string, files []fileset.File) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	documentID = strings.TrimSpace(documentID)
	checkpointID = strings.TrimSpace(checkpointID)
	if documentID == "" {
		return fmt.Errorf("document id is required")
	}
	if checkpointID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if files == nil {
		files = []fileset.File{}
	}
	payload, err := json.Marshal(struct {
		DocumentID   string         `json:"documentId"`
		CheckpointID string         `json:"checkpointId"`
		SavedAt      time.Time      `json:"savedAt"`
		Files        []fileset.File `json:"files"`
	}{documentID, checkpointID, time.Now().UTC(), files})
	if err != nil {
		return err
	}

	key := objectKey(documentID, checkpointID)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *S3Store) Get(ctx context.Context, documentID, checkpointID string) ([]fileset.File, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	documentID = strings.TrimSpace(documentID)
	checkpointID = strings.TrimSpace(checkpointID)
	if documentID == "" || checkpointID == "" {
		return nil, fmt.Errorf("document id and checkpoint id are required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, objectKey(documentID, checkpointID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var payload struct {
		Files []fileset.File `json:"files"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%s: %w", documentID, checkpointID, err)
	}
	if payload.Files == nil {
		payload.Files = []fileset.File{}
	}
	return payload.Files, nil
}

func (s *S3Store) List(ctx context.Context, documentID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := documentID + "/"
	ids := make([]string, 0, 16)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func objectKey(documentID, checkpointID string) string {
	return documentID + "/" + checkpointID + ".json"
}
