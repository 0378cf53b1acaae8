package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"esign-dashboard/internal/config"
	"esign-dashboard/internal/domain"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Connect builds the MinIO client and makes sure the bucket exists.
// An empty endpoint disables object storage.
func Connect(ctx context.Context, cfg config.Config) (*minio.Client, error) {
	if cfg.MinioEndpoint == "" {
		log.Info().Msg("MinIO endpoint not set, documents are stored inline")
		return nil, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		log.Info().Str("bucket", cfg.MinioBucket).Msg("Created bucket")
	}

	return client, nil
}

// FileStore resolves DocumentData references into bytes.
type FileStore struct {
	client *minio.Client
	bucket string
}

func NewFileStore(client *minio.Client, bucket string) *FileStore {
	return &FileStore{client: client, bucket: bucket}
}

func (s *FileStore) GetFile(ctx context.Context, data *domain.DocumentData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("no document data")
	}

	switch data.Type {
	case domain.DocumentDataBytes64:
		return base64.StdEncoding.DecodeString(data.Data)

	case domain.DocumentDataS3Path:
		if s.client == nil {
			return nil, fmt.Errorf("object storage disabled, can't read %s", data.Data)
		}
		object, err := s.client.GetObject(ctx, s.bucket, data.Data, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer object.Close()

		return io.ReadAll(object)
	}

	return nil, fmt.Errorf("unsupported document data type %q", data.Type)
}

// PutFile stores content and returns the reference to persist. Without object
// storage the content is kept inline as base64.
func (s *FileStore) PutFile(ctx context.Context, fileName string, content []byte) (*domain.DocumentData, error) {
	id := uuid.NewString()

	if s.client == nil {
		return &domain.DocumentData{
			ID:   id,
			Type: domain.DocumentDataBytes64,
			Data: base64.StdEncoding.EncodeToString(content),
		}, nil
	}

	key := path.Join("documents", id, path.Base(fileName))
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	return &domain.DocumentData{
		ID:   id,
		Type: domain.DocumentDataS3Path,
		Data: key,
	}, nil
}

// Copy duplicates a reference so the copy can outlive the original.
func (s *FileStore) Copy(ctx context.Context, data *domain.DocumentData) (*domain.DocumentData, error) {
	if data.Type == domain.DocumentDataBytes64 {
		return &domain.DocumentData{ID: uuid.NewString(), Type: data.Type, Data: data.Data}, nil
	}

	content, err := s.GetFile(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.PutFile(ctx, path.Base(data.Data), content)
}
