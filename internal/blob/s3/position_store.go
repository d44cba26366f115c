package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// ObjectAPI is the subset of *s3.Client the store uses.
type ObjectAPI interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// PositionStore writes each live position to
// <prefix>/<wallet>/<token>.json.
type PositionStore struct {
	api      ObjectAPI
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ domain.PositionStore = (*PositionStore)(nil)

// NewPositionStore creates a store under prefix in bucket.
func NewPositionStore(api ObjectAPI, bucket, prefix string) *PositionStore {
	return &PositionStore{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

func (s *PositionStore) walletPrefix(wallet common.Address) string {
	return s.prefix + "/" + wallet.Hex() + "/"
}

func (s *PositionStore) objectKey(wallet, token common.Address) string {
	return s.walletPrefix(wallet) + token.Hex() + ".json"
}

func (s *PositionStore) Load(ctx context.Context, wallet common.Address) ([]domain.Position, error) {
	var out []domain.Position
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.walletPrefix(wallet)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list positions: %w", err)
		}
		for _, obj := range page.Contents {
			pos, err := s.get(ctx, aws.ToString(obj.Key))
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, pos)
		}
	}
	return out, nil
}

func (s *PositionStore) get(ctx context.Context, key string) (domain.Position, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Position{}, fmt.Errorf("s3blob: read %s: %w", key, err)
	}
	var pos domain.Position
	if err := json.Unmarshal(body, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("s3blob: decode %s: %w", key, err)
	}
	return pos, nil
}

func (s *PositionStore) Save(ctx context.Context, pos domain.Position) error {
	body, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("s3blob: encode position %s: %w", pos.Token.Hex(), err)
	}
	key := s.objectKey(pos.Wallet, pos.Token)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, wallet, token common.Address) error {
	key := s.objectKey(wallet, token)
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("s3blob: delete %s: %w", key, err)
	}
	return nil
}
