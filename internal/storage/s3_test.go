package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map. Only single-part uploads are supported.
type fakeS3 struct {
	objects     map[string][]byte
	contentType map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.contentType[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

var (
	testSalt  = bytes.Repeat([]byte{7}, 16)
	testNonce = bytes.Repeat([]byte{9}, 12)
)

func TestEncryptDecryptGCM(t *testing.T) {
	plain := []byte("%PDF-1.7 secret quarterly numbers")
	sealed, err := EncryptGCM(plain, "hunter2", testSalt, testNonce)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(sealed))
	assert.False(t, IsEncrypted(plain))

	got, err := DecryptGCM(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = DecryptGCM(sealed, "wrong")
	assert.Error(t, err)

	_, err = DecryptGCM([]byte(gcmMagic+"short"), "hunter2")
	assert.Error(t, err)

	_, err = EncryptGCM(plain, "pw", []byte{1}, testNonce)
	assert.Error(t, err)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://docs/reports/q3.pdf", "docs", "reports/q3.pdf", true},
		{"s3://docs/a", "docs", "a", true},
		{"s3://docs/", "", "", false},
		{"s3:///key", "", "", false},
		{"s3://docs", "", "", false},
		{"https://docs/a", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, k, err := ParseS3URL(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.key, k)
		})
	}
}

func TestS3ClientDownload(t *testing.T) {
	api := newFakeS3()
	plain := []byte("%PDF-1.4 body")
	sealed, err := EncryptGCM(plain, "pw", testSalt, testNonce)
	require.NoError(t, err)
	api.objects["plain.pdf"] = plain
	api.objects["sealed.pdf"] = sealed

	c := NewS3ClientWithAPI(api, "docs", 8)
	assert.Equal(t, "docs", c.Bucket())
	ctx := context.Background()

	got, err := c.DownloadFile(ctx, "plain.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	got, err = c.DownloadFile(ctx, "sealed.pdf", "pw")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = c.DownloadFile(ctx, "sealed.pdf", "")
	assert.ErrorContains(t, err, "encrypted")

	_, err = c.DownloadFile(ctx, "missing.pdf", "")
	assert.Error(t, err)
}

func TestS3ClientUpload(t *testing.T) {
	api := newFakeS3()
	c := NewS3ClientWithAPI(api, "docs", 1)
	assert.Equal(t, int64(manager.MinUploadPartSize), c.partSize)

	_, err := c.UploadFile(context.Background(), "out/report.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), api.objects["out/report.pdf"])
	assert.Equal(t, "application/pdf", api.contentType["out/report.pdf"])
}
