package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

// Delivery selects how a rendered static map reaches the caller.
type Delivery string

const (
	// DeliveryInline returns the image as base64 content in the result.
	DeliveryInline Delivery = "inline"
	// DeliveryFile also writes the image under OutputDir and names the
	// file in the caption. The image is still returned inline.
	DeliveryFile Delivery = "file"
)

// ParseDelivery validates a delivery name. The empty string selects inline.
func ParseDelivery(s string) (Delivery, error) {
	switch Delivery(strings.ToLower(strings.TrimSpace(s))) {
	case "", DeliveryInline:
		return DeliveryInline, nil
	case DeliveryFile:
		return DeliveryFile, nil
	default:
		return "", fmt.Errorf("unknown static map delivery %q (want inline or file)", s)
	}
}

// StaticMapOptions configures static map delivery.
type StaticMapOptions struct {
	Delivery  Delivery
	OutputDir string
}

// StaticMapInput are the arguments of the static_map tool.
type StaticMapInput struct {
	Center string `json:"center"`
	Level  *int   `json:"level,omitempty"`
	W      *int   `json:"w,omitempty"`
	H      *int   `json:"h,omitempty"`
	Format string `json:"format,omitempty"`
}

// StaticMapTool returns the static_map tool definition.
func StaticMapTool() mcp.Tool {
	return mcp.NewTool(ToolStaticMap,
		mcp.WithDescription("Render a map image around a position or address with Naver Maps"),
		mcp.WithString("center",
			mcp.Required(),
			mcp.Description("Map center as \"longitude,latitude\" or an address"),
		),
		mcp.WithNumber("level",
			mcp.Description("Zoom level (1-20)"),
			mcp.Min(MinLevel),
			mcp.Max(MaxLevel),
			mcp.DefaultNumber(DefaultLevel),
		),
		mcp.WithNumber("w",
			mcp.Description("Image width in pixels (1-1280)"),
			mcp.Min(MinImageSize),
			mcp.Max(MaxImageSize),
			mcp.DefaultNumber(DefaultImageSize),
		),
		mcp.WithNumber("h",
			mcp.Description("Image height in pixels (1-1280)"),
			mcp.Min(MinImageSize),
			mcp.Max(MaxImageSize),
			mcp.DefaultNumber(DefaultImageSize),
		),
		mcp.WithString("format",
			mcp.Description("Image format"),
			mcp.Enum(FormatPNG, FormatJPEG),
			mcp.DefaultString(DefaultFormat),
		),
	)
}

// HandleStaticMap renders a raster map and returns it as image content.
func (r *Registry) HandleStaticMap(ctx context.Context, req mcp.CallToolRequest) Outcome {
	input, err := InputParser[StaticMapInput](req)
	if err != nil {
		return InvalidInput("%v", err)
	}
	params, err := input.normalize()
	if err != nil {
		return InvalidInput("%v", err)
	}

	center, err := resolveLocation(ctx, r.gw, input.Center)
	if err != nil {
		return FailedWith(err)
	}
	params.Center = center.Value

	img, err := r.gw.StaticMap(ctx, params)
	if err != nil {
		return FailedWith(err)
	}
	if len(img.Data) == 0 {
		return FailedWith(fmt.Errorf("static map response was empty"))
	}

	mimeType := imageMIMEType(img.ContentType, params.Format)
	caption := fmt.Sprintf("지도 이미지 (중심: %s, 레벨: %d, 크기: %dx%d, 형식: %s)",
		center, params.Level, params.Width, params.Height, params.Format)

	if r.staticMap.Delivery == DeliveryFile {
		path, err := r.saveImage(img.Data, params.Format)
		if err != nil {
			return FailedWith(err)
		}
		caption += "\n저장 위치: " + path
	}

	image := mcp.NewImageContent(base64.StdEncoding.EncodeToString(img.Data), mimeType)
	return FoundText(caption, image)
}

func (in StaticMapInput) normalize() (ncp.StaticMapRequest, error) {
	p := ncp.StaticMapRequest{
		Level:  DefaultLevel,
		Width:  DefaultImageSize,
		Height: DefaultImageSize,
		Format: DefaultFormat,
	}

	if err := requireText("center", in.Center); err != nil {
		return p, err
	}
	if in.Level != nil {
		p.Level = *in.Level
	}
	if in.W != nil {
		p.Width = *in.W
	}
	if in.H != nil {
		p.Height = *in.H
	}
	if in.Format != "" {
		p.Format = strings.ToLower(in.Format)
	}

	if p.Level < MinLevel || p.Level > MaxLevel {
		return p, fmt.Errorf("level must be between %d and %d, got %d", MinLevel, MaxLevel, p.Level)
	}
	if p.Width < MinImageSize || p.Width > MaxImageSize {
		return p, fmt.Errorf("w must be between %d and %d, got %d", MinImageSize, MaxImageSize, p.Width)
	}
	if p.Height < MinImageSize || p.Height > MaxImageSize {
		return p, fmt.Errorf("h must be between %d and %d, got %d", MinImageSize, MaxImageSize, p.Height)
	}
	if p.Format != FormatPNG && p.Format != FormatJPEG {
		return p, fmt.Errorf("format must be png or jpeg, got %q", in.Format)
	}
	return p, nil
}

// imageMIMEType prefers the provider's content type and falls back to
// the requested format.
func imageMIMEType(contentType, format string) string {
	if ct := strings.TrimSpace(strings.Split(contentType, ";")[0]); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/" + format
}

func (r *Registry) saveImage(data []byte, format string) (string, error) {
	dir := r.staticMap.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ext := format
	if ext == FormatJPEG {
		ext = "jpg"
	}
	path := filepath.Join(dir, fmt.Sprintf("naver-map-%s.%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write map image: %w", err)
	}
	return path, nil
}
