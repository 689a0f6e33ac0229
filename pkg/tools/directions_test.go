package tools

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

const comfortOnlyRoute = `{
	"code": 0,
	"message": "길찾기를 성공하였습니다.",
	"route": {
		"tracomfort": [{
			"summary": {
				"start": {"location": [127.0, 37.5]},
				"goal": {"location": [129.0, 35.1], "dir": 0},
				"distance": 325412,
				"duration": 13830000,
				"tollFare": 12300,
				"fuelPrice": 45210
			}
		}]
	}
}`

func TestHandleDirectionsCoordinatesSkipGeocoding(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathDriving, comfortOnlyRoute)

	result := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start":  "127.0,37.5",
		"goal":   "129.0,35.1",
		"option": "trafast",
	})).Result()
	AssertSuccessResult(t, result, "directions should succeed")

	if n := len(sp.Calls(ncp.PathGeocode)); n != 0 {
		t.Errorf("expected zero geocode calls, got %d", n)
	}

	calls := sp.Calls(ncp.PathDriving)
	if len(calls) != 1 {
		t.Fatalf("expected 1 driving call, got %d", len(calls))
	}
	q := calls[0].URL.Query()
	if q.Get("start") != "127.0,37.5" || q.Get("goal") != "129.0,35.1" {
		t.Errorf("coordinates should pass through unchanged, got start=%q goal=%q", q.Get("start"), q.Get("goal"))
	}
	if q.Get("option") != "trafast" {
		t.Errorf("option = %q", q.Get("option"))
	}
	if q.Has("waypoints") {
		t.Error("waypoints should be omitted when absent")
	}
}

func TestHandleDirectionsFallbackToComfort(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathDriving, comfortOnlyRoute)

	outcome := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start":  "127.0,37.5",
		"goal":   "129.0,35.1",
		"option": "trafast",
	}))
	if outcome.Kind != Found {
		t.Fatalf("expected Found, got %s (%v)", outcome.Kind, outcome.Err)
	}

	for _, want := range []string{
		"경로 옵션: tracomfort",
		"출발지: 127,37.5",
		"도착지: 129,35.1",
		"총 거리: 325.4km",
		"예상 소요 시간: 231분",
		"통행료: 12,300원",
		"예상 유류비: 45,210원",
	} {
		if !strings.Contains(outcome.Text, want) {
			t.Errorf("expected %q in:\n%s", want, outcome.Text)
		}
	}
}

func TestHandleDirectionsPriority(t *testing.T) {
	route := func(distance string) string {
		return `[{"summary":{"start":{"location":[127,37.5]},"goal":{"location":[129,35.1]},"distance":` + distance + `,"duration":60000}}]`
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"fast first", `{"code":0,"route":{"trainormal":` + route("4000") + `,"trafast":` + route("1000") + `,"traoptimal":` + route("2000") + `}}`, "trafast"},
		{"optimal before comfort", `{"code":0,"route":{"tracomfort":` + route("3000") + `,"traoptimal":` + route("2000") + `}}`, "traoptimal"},
		{"comfort before normal", `{"code":0,"route":{"trainormal":` + route("4000") + `,"tracomfort":` + route("3000") + `}}`, "tracomfort"},
		{"normal alone", `{"code":0,"route":{"trainormal":` + route("4000") + `}}`, "trainormal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewStubProvider(t)
			sp.JSON(ncp.PathDriving, tt.body)

			outcome := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
				"start":  "127,37.5",
				"goal":   "129,35.1",
				"option": "trainormal",
			}))
			if outcome.Kind != Found {
				t.Fatalf("expected Found, got %s", outcome.Kind)
			}
			if !strings.Contains(outcome.Text, "경로 옵션: "+tt.want+"\n") {
				t.Errorf("expected profile %s in:\n%s", tt.want, outcome.Text)
			}
		})
	}
}

func TestHandleDirectionsGeocodesAddresses(t *testing.T) {
	sp := NewStubProvider(t)
	sp.Handle(ncp.PathGeocode, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "서울역":
			_, _ = w.Write([]byte(geocodeBody("서울특별시 중구 한강대로 405", "126.9707", "37.5547")))
		default:
			_, _ = w.Write([]byte(`{"status":"OK","addresses":[]}`))
		}
	})
	sp.JSON(ncp.PathDriving, comfortOnlyRoute)

	outcome := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start":     "서울역",
		"goal":      "어딘가",
		"waypoints": "127.1,37.4",
	}))
	if outcome.Kind != Found {
		t.Fatalf("expected Found, got %s (%v)", outcome.Kind, outcome.Err)
	}

	if n := len(sp.Calls(ncp.PathGeocode)); n != 2 {
		t.Errorf("expected 2 geocode calls, got %d", n)
	}

	q := sp.Calls(ncp.PathDriving)[0].URL.Query()
	if got := q.Get("start"); got != "126.9707,37.5547" {
		t.Errorf("start should be geocoded, got %q", got)
	}
	if got := q.Get("goal"); got != "어딘가" {
		t.Errorf("unresolved goal should pass through, got %q", got)
	}
	if got := q.Get("option"); got != "trafast" {
		t.Errorf("option should default to trafast, got %q", got)
	}
	if got := q.Get("waypoints"); got != "127.1,37.4" {
		t.Errorf("waypoints = %q", got)
	}
	if !strings.Contains(outcome.Text, "출발지: 서울역 (127,37.5)") {
		t.Errorf("expected geocoded start label, got:\n%s", outcome.Text)
	}
}

func TestHandleDirectionsNotFound(t *testing.T) {
	sp := NewStubProvider(t)
	sp.JSON(ncp.PathDriving, `{"code":1,"message":"출발지와 도착지가 동일합니다.","route":{}}`)

	result := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start": "127,37.5",
		"goal":  "127,37.5",
	})).Result()

	AssertSuccessResult(t, result, "no route is not an error")
	if got := ResultText(result); got != "경로를 찾을 수 없습니다." {
		t.Errorf("text = %q", got)
	}
}

func TestHandleDirectionsTransportError(t *testing.T) {
	sp := NewStubProvider(t)
	sp.Status(ncp.PathDriving, http.StatusForbidden)

	result := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start": "127,37.5",
		"goal":  "129,35.1",
	})).Result()

	AssertErrorResult(t, result, "403 should surface as an error result")
	if text := ResultText(result); !strings.Contains(text, "403") || !strings.HasPrefix(text, "오류 발생: ") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestHandleDirectionsGeocodeFailureStops(t *testing.T) {
	sp := NewStubProvider(t)
	sp.Status(ncp.PathGeocode, http.StatusUnauthorized)
	sp.JSON(ncp.PathDriving, comfortOnlyRoute)

	outcome := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start": "서울역",
		"goal":  "129,35.1",
	}))
	if outcome.Kind != Failed {
		t.Fatalf("expected Failed, got %s", outcome.Kind)
	}
	if n := len(sp.Calls(ncp.PathDriving)); n != 0 {
		t.Errorf("driving should not be called after a geocode failure, got %d calls", n)
	}
}

func TestHandleDirectionsInvalidOption(t *testing.T) {
	sp := NewStubProvider(t)

	outcome := sp.Registry().HandleDirections(context.Background(), NewRequest(ToolDirections, map[string]any{
		"start":  "127,37.5",
		"goal":   "129,35.1",
		"option": "teleport",
	}))
	if outcome.Kind != Invalid {
		t.Fatalf("expected Invalid, got %s", outcome.Kind)
	}
	AssertErrorResult(t, outcome.Result(), "invalid option should be an error result")
}
