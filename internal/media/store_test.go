package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return st
}

// encodeJPEG produces a JPEG of the given dimensions for thumbnail tests.
func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestFrameKey_Layout(t *testing.T) {
	occurred := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	key := FrameKey("org-1", "cam-1", "evt-1", occurred)
	if key != "frames/org-1/cam-1/2026/03/07/evt-1.jpg" {
		t.Errorf("FrameKey = %q", key)
	}
	thumb := ThumbKey("org-1", "cam-1", "evt-1", occurred)
	if thumb != "frames/org-1/cam-1/2026/03/07/evt-1_thumb.jpg" {
		t.Errorf("ThumbKey = %q", thumb)
	}
}

func TestPutAndRemove(t *testing.T) {
	st := newTestStore(t)
	key := FrameKey("org-1", "cam-1", "evt-1", time.Now())

	if err := st.Put(key, []byte("frame bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	path, err := st.Path(key)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "frame bytes" {
		t.Errorf("stored bytes = %q", data)
	}

	if err := st.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("blob still present after Remove")
	}

	// Removing an already-removed blob is not an error.
	if err := st.Remove(key); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestResolve_RejectsTraversal(t *testing.T) {
	st := newTestStore(t)

	for _, key := range []string{
		"../outside.jpg",
		"frames/../../etc/passwd",
		"/etc/passwd",
		".",
		"",
	} {
		if err := st.Put(key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q): err = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)

	contentType, data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("contentType = %q, want image/jpeg", contentType)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("data = %x, want %x", data, payload)
	}
}

func TestDecodeDataURL_Rejections(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"not a data url", "https://example.com/frame.jpg"},
		{"non-image type", "data:text/plain;base64,aGVsbG8="},
		{"missing payload", "data:image/jpeg;base64"},
		{"bad base64", "data:image/jpeg;base64,@@@@"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeDataURL(tc.url); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestThumbnail_ScalesDown(t *testing.T) {
	src := encodeJPEG(t, 640, 480)

	out, err := Thumbnail(src)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if w := img.Bounds().Dx(); w != ThumbnailWidth {
		t.Errorf("width = %d, want %d", w, ThumbnailWidth)
	}
	if h := img.Bounds().Dy(); h != 240 {
		t.Errorf("height = %d, want 240 (aspect preserved)", h)
	}
}

func TestThumbnail_SmallImageKeepsSize(t *testing.T) {
	src := encodeJPEG(t, 100, 80)

	out, err := Thumbnail(src)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 100 || h != 80 {
		t.Errorf("size = %dx%d, want 100x80", w, h)
	}
}

func TestThumbnail_RejectsGarbage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}
