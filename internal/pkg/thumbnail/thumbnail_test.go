package thumbnail

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}

func TestJPEG(t *testing.T) {
	t.Run("wide image scales to max width", func(t *testing.T) {
		out, err := JPEG(encodePNG(t, 1280, 720), 320)
		require.NoError(t, err)

		w, h := decodeSize(t, out)
		assert.Equal(t, 320, w)
		assert.Equal(t, 180, h)
	})

	t.Run("tall image scales to max height", func(t *testing.T) {
		out, err := JPEG(encodePNG(t, 600, 1200), 320)
		require.NoError(t, err)

		w, h := decodeSize(t, out)
		assert.Equal(t, 160, w)
		assert.Equal(t, 320, h)
	})

	t.Run("small image keeps its size but becomes jpeg", func(t *testing.T) {
		out, err := JPEG(encodePNG(t, 100, 80), 320)
		require.NoError(t, err)

		w, h := decodeSize(t, out)
		assert.Equal(t, 100, w)
		assert.Equal(t, 80, h)
	})

	t.Run("zero maxDim falls back to the default", func(t *testing.T) {
		out, err := JPEG(encodePNG(t, 1000, 1000), 0)
		require.NoError(t, err)

		w, _ := decodeSize(t, out)
		assert.Equal(t, DefaultMaxDim, w)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := JPEG([]byte("not an image"), 320)
		assert.Error(t, err)
	})
}
