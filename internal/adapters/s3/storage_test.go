package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestUpload_AWSURL(t *testing.T) {
	fake := &fakeS3{}
	s := newStorage(fake, Options{Bucket: "slips", Region: "ap-southeast-1"})

	url, err := s.Upload(context.Background(), "/slips/sub-1/slip.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	assert.Equal(t, "https://slips.s3.ap-southeast-1.amazonaws.com/slips/sub-1/slip.png", url)
	assert.Equal(t, "slips/sub-1/slip.png", aws.ToString(fake.in.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.in.ContentType))
	assert.Equal(t, "png", fake.body)
}

func TestUpload_CustomEndpointAndBase(t *testing.T) {
	s := newStorage(&fakeS3{}, Options{Bucket: "b", Endpoint: "http://minio:9000/"})
	url, err := s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/b/a.jpg", url)

	s = newStorage(&fakeS3{}, Options{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"})
	url, err = s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", url)
}

func TestUpload_Error(t *testing.T) {
	s := newStorage(&fakeS3{err: errors.New("denied")}, Options{Bucket: "b", Region: "r"})
	_, err := s.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x"))
	assert.ErrorContains(t, err, "denied")
}
