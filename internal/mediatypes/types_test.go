package mediatypes

import (
	"testing"
)

func TestFromExtension(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want Mask
	}{
		{name: "JPEG image", ext: ".jpg", want: TypeImage},
		{name: "PNG image", ext: ".png", want: TypeImage},
		{name: "GIF", ext: ".gif", want: TypeGIF},
		{name: "SVG", ext: ".svg", want: TypeSVG},
		{name: "DNG raw", ext: ".dng", want: TypeRaw},
		{name: "CR2 raw", ext: ".cr2", want: TypeRaw},
		{name: "MP4 video", ext: ".mp4", want: TypeVideo},
		{name: "MKV video", ext: ".mkv", want: TypeVideo},
		{name: "Unknown extension", ext: ".xyz", want: TypeNone},
		{name: "Empty extension", ext: "", want: TypeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromExtension(tt.ext); got != tt.want {
				t.Errorf("FromExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Mask
	}{
		{"/photos/IMG_0001.JPG", TypeImage},
		{"/photos/clip.MoV", TypeVideo},
		{"/photos/anim.gif", TypeGIF},
		{"/photos/notes.txt", TypeNone},
		{"/photos/noext", TypeNone},
	}

	for _, tt := range tests {
		if got := FromPath(tt.path); got != tt.want {
			t.Errorf("FromPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMaskBits(t *testing.T) {
	if TypeImage != 1 || TypeVideo != 2 || TypeGIF != 4 || TypeRaw != 8 || TypeSVG != 16 {
		t.Fatalf("unexpected bit values: %d %d %d %d %d", TypeImage, TypeVideo, TypeGIF, TypeRaw, TypeSVG)
	}

	m := TypeImage | TypeGIF
	if !m.Has(TypeImage) || !m.Has(TypeGIF) {
		t.Errorf("%v should contain image and gif", m)
	}
	if m.Has(TypeVideo) {
		t.Errorf("%v should not contain video", m)
	}
	if m.Has(TypeNone) {
		t.Error("Has(TypeNone) should be false")
	}
	if got := m.String(); got != "image|gif" {
		t.Errorf("String() = %q, want %q", got, "image|gif")
	}
	if got := TypeNone.String(); got != "none" {
		t.Errorf("TypeNone.String() = %q", got)
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".webp", "image/webp"},
		{".mp4", "video/mp4"},
		{".xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.ext); got != tt.want {
			t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile("a/b/c.heic") {
		t.Error("heic should be media")
	}
	if IsMediaFile("a/b/.nomedia") {
		t.Error(".nomedia should not be media")
	}
	if !IsJPEG("x.JPEG") || IsJPEG("x.png") {
		t.Error("IsJPEG mismatch")
	}
}
