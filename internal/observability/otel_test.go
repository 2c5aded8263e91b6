package observability

import "testing"

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("x-api-key=abc, bad, =v, k= ,team=sb")
	if len(h) != 2 || h["x-api-key"] != "abc" || h["team"] != "sb" {
		t.Fatalf("headers: got=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestExportConfigClampsRatio(t *testing.T) {
	for raw, want := range map[string]float64{"3": 1, "-1": 0, "0.25": 0.25} {
		t.Setenv("OTEL_SAMPLER_RATIO", raw)
		if got := exportConfigFromEnv().Ratio; got != want {
			t.Fatalf("ratio(%s): want=%v got=%v", raw, want, got)
		}
	}
}
