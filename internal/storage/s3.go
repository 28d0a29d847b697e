package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// gcmMagic prefixes objects encrypted by the upload service:
// magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const gcmMagic = "GCM3NCR0"

const pbkdf2Iterations = 100000

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	manager.UploadAPIClient
}

// S3Client reads and writes documents in one bucket.
type S3Client struct {
	client     ObjectAPI
	bucketName string
	partSize   int64
}

// NewS3Client creates a client from the default AWS config chain.
func NewS3Client(ctx context.Context, bucketName string, partSizeMB int) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3ClientWithAPI(s3.NewFromConfig(cfg), bucketName, partSizeMB), nil
}

// NewS3ClientWithAPI wraps an existing client.
func NewS3ClientWithAPI(api ObjectAPI, bucketName string, partSizeMB int) *S3Client {
	part := int64(partSizeMB) << 20
	if part < manager.MinUploadPartSize {
		part = manager.MinUploadPartSize
	}
	return &S3Client{client: api, bucketName: bucketName, partSize: part}
}

func (s *S3Client) Bucket() string { return s.bucketName }

// DownloadFile fetches key. Objects carrying the GCM magic are decrypted
// with password; anything else is returned as stored.
func (s *S3Client) DownloadFile(ctx context.Context, key, password string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	if !IsEncrypted(data) {
		log.Debug().Str("bucket", s.bucketName).Str("key", key).Int("size", len(data)).Msg("downloaded plain object from S3")
		return data, nil
	}
	if password == "" {
		return nil, fmt.Errorf("object %s is encrypted and no password was given", key)
	}
	plain, err := DecryptGCM(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	log.Info().Str("bucket", s.bucketName).Str("key", key).Int("size", len(plain)).Msg("downloaded and decrypted object from S3")
	return plain, nil
}

// UploadFile stores data under key using the multipart upload manager.
func (s *S3Client) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = s.partSize
	})
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	out, err := uploader.Upload(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("bucket", s.bucketName).Str("key", key).Int("size", len(data)).Str("location", out.Location).Msg("uploaded object to S3")
	return out.Location, nil
}

// IsEncrypted reports whether data carries the GCM envelope.
func IsEncrypted(data []byte) bool {
	return len(data) >= len(gcmMagic) && string(data[:len(gcmMagic)]) == gcmMagic
}

// DecryptGCM opens the GCM envelope with a PBKDF2-derived key.
func DecryptGCM(data []byte, password string) ([]byte, error) {
	if len(data) < 8+16+12+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]
	sealed := data[36:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

// EncryptGCM builds the envelope DecryptGCM reads. salt must be 16 bytes
// and nonce 12 bytes.
func EncryptGCM(plain []byte, password string, salt, nonce []byte) ([]byte, error) {
	if len(salt) != 16 || len(nonce) != 12 {
		return nil, fmt.Errorf("invalid salt/nonce length %d/%d", len(salt), len(nonce))
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 36+len(plain)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	path := strings.TrimPrefix(u, "s3://")
	if path == u {
		return "", "", fmt.Errorf("not an s3 url: %s", u)
	}
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", u)
	}
	return path[:slash], path[slash+1:], nil
}
