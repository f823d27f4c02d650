package relay

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3Object struct {
	bucket, key, body, message string
}

type fakePutter struct {
	mu      sync.Mutex
	objects []s3Object
	err     error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, s3Object{
		bucket:  *in.Bucket,
		key:     *in.Key,
		body:    string(body),
		message: in.Metadata["message"],
	})
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher_Publish(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "account.json")
	require.NoError(t, os.WriteFile(p, []byte(`[{"id":1}]`), 0o644))

	putter := &fakePutter{}
	pub := NewS3PublisherWithClient(putter, "backups", "enrollkeeper")
	pub.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC) }

	require.NoError(t, pub.Publish(context.Background(), []string{p}, "Добавлен новый пользователь"))

	require.Len(t, putter.objects, 2)
	assert.Equal(t, "enrollkeeper/latest/account.json", putter.objects[0].key)
	assert.Equal(t, "enrollkeeper/20260102T030405.000000006Z/account.json", putter.objects[1].key)
	for _, o := range putter.objects {
		assert.Equal(t, "backups", o.bucket)
		assert.Equal(t, `[{"id":1}]`, o.body)
		msg, err := url.QueryUnescape(o.message)
		require.NoError(t, err)
		assert.Equal(t, "Добавлен новый пользователь", msg)
	}
}

func TestS3Publisher_Errors(t *testing.T) {
	pub := NewS3PublisherWithClient(&fakePutter{}, "b", "")
	err := pub.Publish(context.Background(), []string{filepath.Join(t.TempDir(), "missing.json")}, "m")
	assert.ErrorContains(t, err, "s3: read")

	dir := t.TempDir()
	p := filepath.Join(dir, "purchase.json")
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))
	denied := errors.New("access denied")
	pub = NewS3PublisherWithClient(&fakePutter{err: denied}, "b", "")
	assert.ErrorIs(t, pub.Publish(context.Background(), []string{p}, "m"), denied)
}

func TestNewS3Publisher_RequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	first := &fakePublisher{err: boom}
	second := &fakePublisher{}

	err := Fanout{first, second}.Publish(context.Background(), []string{"a"}, "msg")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, first.snapshot(), 1)
	assert.Len(t, second.snapshot(), 1, "later publishers still run")

	assert.NoError(t, Fanout{second}.Publish(context.Background(), nil, "msg"))
}
