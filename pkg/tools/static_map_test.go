package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R', 0xff, 0x00}

func servePNG(sp *StubProvider) {
	sp.Handle(ncp.PathStaticMap, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})
}

func TestHandleStaticMapInline(t *testing.T) {
	sp := NewStubProvider(t)
	servePNG(sp)

	result := sp.Registry().HandleStaticMap(context.Background(), NewRequest(ToolStaticMap, map[string]any{
		"center": "127.0276,37.4979",
	})).Result()
	AssertSuccessResult(t, result, "static map should succeed")

	img, ok := ResultImage(result)
	if !ok {
		t.Fatal("expected image content")
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIME type = %q", img.MIMEType)
	}

	decoded, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		t.Fatalf("image data is not base64: %v", err)
	}
	if !bytes.Equal(decoded, pngBytes) {
		t.Errorf("round trip mismatch: got %v, want %v", decoded, pngBytes)
	}

	caption := ResultText(result)
	for _, want := range []string{"127.0276,37.4979", "레벨: 16", "512x512", "png"} {
		if !strings.Contains(caption, want) {
			t.Errorf("expected %q in caption %q", want, caption)
		}
	}

	q := sp.Calls(ncp.PathStaticMap)[0].URL.Query()
	if q.Get("level") != "16" || q.Get("w") != "512" || q.Get("h") != "512" || q.Get("format") != "png" {
		t.Errorf("defaults not applied: %v", q)
	}
	if n := len(sp.Calls(ncp.PathGeocode)); n != 0 {
		t.Errorf("coordinate center should not be geocoded, got %d calls", n)
	}
}

func TestHandleStaticMapGeocodesCenter(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathGeocode, geocodeBody("서울특별시 중구 세종대로 110", "126.9779692", "37.566535"))
	sp.Handle(ncp.PathStaticMap, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	})

	result := sp.Registry().HandleStaticMap(context.Background(), NewRequest(ToolStaticMap, map[string]any{
		"center": "서울시청",
		"level":  12,
		"w":      300,
		"h":      200,
		"format": "jpeg",
	})).Result()
	AssertSuccessResult(t, result, "static map should succeed")

	q := sp.Calls(ncp.PathStaticMap)[0].URL.Query()
	if got := q.Get("center"); got != "126.9779692,37.566535" {
		t.Errorf("center = %q", got)
	}
	if q.Get("level") != "12" || q.Get("w") != "300" || q.Get("h") != "200" || q.Get("format") != "jpeg" {
		t.Errorf("parameters not forwarded: %v", q)
	}

	img, ok := ResultImage(result)
	if !ok {
		t.Fatal("expected image content")
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("MIME type should fall back to the requested format, got %q", img.MIMEType)
	}
	if caption := ResultText(result); !strings.Contains(caption, "서울시청 (126.9779692,37.566535)") {
		t.Errorf("caption should name the geocoded center, got %q", caption)
	}
}

func TestHandleStaticMapFileDelivery(t *testing.T) {
	sp := NewStubProvider(t)
	servePNG(sp)
	dir := t.TempDir()

	r := sp.Registry(WithStaticMapOptions(StaticMapOptions{Delivery: DeliveryFile, OutputDir: dir}))
	result := r.HandleStaticMap(context.Background(), NewRequest(ToolStaticMap, map[string]any{
		"center": "127,37.5",
	})).Result()
	AssertSuccessResult(t, result, "static map should succeed")

	if _, ok := ResultImage(result); !ok {
		t.Error("file delivery should still inline the image")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "naver-map-*.png"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one saved image, got %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Error("saved file does not match the provider payload")
	}
	if caption := ResultText(result); !strings.Contains(caption, matches[0]) {
		t.Errorf("caption should name the file, got %q", caption)
	}
}

func TestHandleStaticMapValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing center", map[string]any{}},
		{"level too high", map[string]any{"center": "127,37.5", "level": 21}},
		{"level zero", map[string]any{"center": "127,37.5", "level": 0}},
		{"width too large", map[string]any{"center": "127,37.5", "w": 1281}},
		{"height zero", map[string]any{"center": "127,37.5", "h": 0}},
		{"bad format", map[string]any{"center": "127,37.5", "format": "gif"}},
		{"fractional level", map[string]any{"center": "127,37.5", "level": 3.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewStubProvider(t)
			servePNG(sp)
			outcome := sp.Registry().HandleStaticMap(context.Background(), NewRequest(ToolStaticMap, tt.args))
			if outcome.Kind != Invalid {
				t.Fatalf("expected Invalid, got %s", outcome.Kind)
			}
			if n := len(sp.Calls(ncp.PathStaticMap)); n != 0 {
				t.Errorf("expected no provider calls, got %d", n)
			}
		})
	}
}

func TestHandleStaticMapUnauthorized(t *testing.T) {
	sp := NewStubProvider(t)
	sp.Status(ncp.PathStaticMap, http.StatusUnauthorized)

	result := sp.Registry().HandleStaticMap(context.Background(), NewRequest(ToolStaticMap, map[string]any{
		"center": "127,37.5",
	})).Result()
	AssertErrorResult(t, result, "401 should be an error result")
	if _, ok := ResultImage(result); ok {
		t.Error("failed call should not carry an image")
	}
}

func TestParseDelivery(t *testing.T) {
	tests := []struct {
		in      string
		want    Delivery
		wantErr bool
	}{
		{"", DeliveryInline, false},
		{"inline", DeliveryInline, false},
		{" FILE ", DeliveryFile, false},
		{"url", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDelivery(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelivery(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDelivery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
