package mjpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestServeAndReadFrames(t *testing.T) {
	frame := testJPEG(t, 16, 8)
	var served atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 0
		src := FrameFunc(func(ctx context.Context) ([]byte, error) {
			if n == 3 {
				return nil, io.EOF
			}
			n++
			return frame, nil
		})
		sent, err := Serve(r.Context(), w, src, Limits{})
		assert.ErrorIs(t, err, io.EOF)
		served.Store(int32(sent))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, ContentType, resp.Header.Get("Content-Type"))

	var frames [][]byte
	err = ReadFrames(context.Background(), resp.Body, resp.Header.Get("Content-Type"), func(b []byte) error {
		frames = append(frames, b)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, frame, frames[0])
	assert.EqualValues(t, 3, served.Load())
}

func TestServe_StopsAtMaxDuration(t *testing.T) {
	frame := testJPEG(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		src := FrameFunc(func(ctx context.Context) ([]byte, error) { return frame, nil })
		_, err := Serve(r.Context(), w, src, Limits{MaxFPS: 50, MaxDuration: 100 * time.Millisecond})
		assert.NoError(t, err)
	}))
	defer server.Close()

	start := time.Now()
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	count := 0
	require.NoError(t, ReadFrames(context.Background(), resp.Body, ContentType, func([]byte) error {
		count++
		return nil
	}))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.LessOrEqual(t, count, 10, "fps cap bounds the frame count")
	assert.Positive(t, count)
}

func TestReadFrames_RejectsOtherContentTypes(t *testing.T) {
	err := ReadFrames(context.Background(), bytes.NewReader(nil), "image/jpeg", func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestViewer_AttachAndRelease(t *testing.T) {
	frame := testJPEG(t, 32, 24)
	var open atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		open.Add(1)
		defer open.Add(-1)
		src := FrameFunc(func(ctx context.Context) ([]byte, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Millisecond):
				return frame, nil
			}
		})
		_, _ = Serve(r.Context(), w, src, Limits{})
	}))
	defer server.Close()

	var received atomic.Int32
	v := NewViewer(server.Client(), func(Frame) { received.Add(1) })
	require.NoError(t, v.Release(context.Background()), "releasing a detached viewer is a no-op")

	v.Attach(server.URL)
	v.Attach(server.URL)
	require.Eventually(t, func() bool { return received.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	last := v.Last()
	assert.Equal(t, 32, last.Width)
	assert.Equal(t, 24, last.Height)
	assert.True(t, v.Attached())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, v.Release(ctx))
	assert.False(t, v.Attached())

	require.Eventually(t, func() bool { return open.Load() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Nil(t, v.Err())
}
