package sniffer

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectHead(t *testing.T) {
	cases := map[string]struct {
		head []byte
		want MediaType
	}{
		"jpeg": {[]byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, TypeJPEG},
		"png":  {[]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}, TypePNG},
		"gif":  {[]byte("GIF89a\x01\x00"), TypeGIF},
		"webp": {[]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), TypeWEBP},
		"avif": {[]byte("\x00\x00\x00\x1cftypavif\x00\x00\x00\x00"), TypeAVIF},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := DetectHead(tc.head)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Type)
		})
	}
}

func TestDetectRejectsOtherContent(t *testing.T) {
	for _, head := range [][]byte{nil, []byte("<svg xmlns='http://www.w3.org/2000/svg'/>"), []byte("%PDF-1.7")} {
		_, err := DetectHead(head)
		require.ErrorIs(t, err, ErrUnknownType)
	}
}

func TestDetectReturnsConsumedHead(t *testing.T) {
	body := append([]byte{0xff, 0xd8, 0xff, 0xdb}, bytes.Repeat([]byte{1}, 1000)...)
	result, head, err := Detect(bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, "jpg", result.Extension())
	require.Len(t, head, 512)
	require.Equal(t, body[:512], head)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	h := http.Header{}
	require.Empty(t, MimeTypeFromHTTP(h))
	h.Set("Content-Type", "image/png; charset=binary")
	require.Equal(t, "image/png", MimeTypeFromHTTP(h))
}

func TestAccepts(t *testing.T) {
	jpeg := Result{Type: TypeJPEG, MIME: "image/jpeg"}
	require.True(t, jpeg.Accepts(""))
	require.True(t, jpeg.Accepts("application/octet-stream"))
	require.True(t, jpeg.Accepts("image/jpg"))
	require.True(t, jpeg.Accepts("IMAGE/JPEG"))
	require.False(t, jpeg.Accepts("image/png"))
}
