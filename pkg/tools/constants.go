package tools

// Tool names as registered with the MCP server.
const (
	ToolDirections     = "directions"
	ToolGeocode        = "geocode"
	ToolReverseGeocode = "reverse_geocode"
	ToolStaticMap      = "static_map"
)

// Static map parameter bounds and defaults
const (
	MinLevel     = 1
	MaxLevel     = 20
	DefaultLevel = 16

	MinImageSize     = 1
	MaxImageSize     = 1280
	DefaultImageSize = 512

	FormatPNG     = "png"
	FormatJPEG    = "jpeg"
	DefaultFormat = FormatPNG
)

// User-facing messages
const (
	msgErrorPrefix          = "오류 발생: "
	msgAddressNotFound      = "주소를 찾을 수 없습니다."
	msgRouteNotFound        = "경로를 찾을 수 없습니다."
	msgCoordinateNotMatched = "해당 좌표의 주소를 찾을 수 없습니다."
)
