package tools

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

func TestHandleReverseGeocode(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathReverseGeocode, `{
		"status": {"code": 0, "name": "ok", "message": "done"},
		"results": [
			{
				"name": "roadaddr",
				"region": {"area1": {"name": "서울특별시"}, "area2": {"name": "강남구"}, "area3": {"name": "역삼동"}},
				"land": {"name": "테헤란로", "number1": "152", "addition0": {"type": "building", "value": "강남파이낸스센터"}}
			},
			{
				"name": "addr",
				"region": {"area1": {"name": "서울특별시"}, "area2": {"name": "강남구"}, "area3": {"name": "역삼동"}},
				"land": {"number1": "737"}
			}
		]
	}`)

	outcome := sp.Registry().HandleReverseGeocode(context.Background(), NewRequest(ToolReverseGeocode, map[string]any{
		"lat": 37.5000,
		"lng": 127.0364,
	}))
	if outcome.Kind != Found {
		t.Fatalf("expected Found, got %s (%v)", outcome.Kind, outcome.Err)
	}
	if !strings.Contains(outcome.Text, "서울특별시 강남구 역삼동 테헤란로 152 (강남파이낸스센터)") {
		t.Errorf("unexpected label:\n%s", outcome.Text)
	}
	if !strings.Contains(outcome.Text, "37.5, 127.0364") {
		t.Errorf("expected input coordinates in:\n%s", outcome.Text)
	}

	calls := sp.Calls(ncp.PathReverseGeocode)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if got := calls[0].URL.Query().Get("coords"); got != "127.0364,37.5" {
		t.Errorf("coords should be lng,lat, got %q", got)
	}
}

func TestHandleReverseGeocodeNotFound(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathReverseGeocode, `{"status":{"code":3,"name":"no results","message":"요청한 데이타의 결과가 없습니다."},"results":[]}`)

	result := sp.Registry().HandleReverseGeocode(context.Background(), NewRequest(ToolReverseGeocode, map[string]any{
		"lat": 0.0,
		"lng": 0.0,
	})).Result()

	AssertSuccessResult(t, result, "not found is not an error")
	if got := ResultText(result); got != "해당 좌표의 주소를 찾을 수 없습니다." {
		t.Errorf("text = %q", got)
	}
}

func TestHandleReverseGeocodeValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing lng", map[string]any{"lat": 37.5}},
		{"latitude out of range", map[string]any{"lat": 91.0, "lng": 127.0}},
		{"longitude out of range", map[string]any{"lat": 37.5, "lng": 200.0}},
		{"wrong type", map[string]any{"lat": "north", "lng": 127.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewStubProvider(t)
			outcome := sp.Registry().HandleReverseGeocode(context.Background(), NewRequest(ToolReverseGeocode, tt.args))
			if outcome.Kind != Invalid {
				t.Fatalf("expected Invalid, got %s", outcome.Kind)
			}
			if n := len(sp.Calls(ncp.PathReverseGeocode)); n != 0 {
				t.Errorf("expected no provider calls, got %d", n)
			}
		})
	}
}

func TestHandleReverseGeocodeServerError(t *testing.T) {
	sp := NewStubProvider(t)
	sp.Status(ncp.PathReverseGeocode, http.StatusInternalServerError)

	result := sp.Registry().HandleReverseGeocode(context.Background(), NewRequest(ToolReverseGeocode, map[string]any{
		"lat": 37.5,
		"lng": 127.0,
	})).Result()

	AssertErrorResult(t, result, "500 should be an error result")
	if text := ResultText(result); !strings.Contains(text, "500") {
		t.Errorf("expected status code in %q", text)
	}
}
