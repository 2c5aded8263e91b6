package logger

import (
	"strings"
	"testing"
)

func TestRedactorPairs(t *testing.T) {
	r := redactor{enabled: true, salt: "s"}
	out := r.pairs([]interface{}{
		"api_key", "sk-1",
		"username", "dave",
		"header", "Bearer abc",
		"payload", map[string]interface{}{"password": "p", "n": 3},
		"job_id", "j-1",
		"dangling",
	})
	if out[1] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("secrets not redacted: %v", out)
	}
	if h, _ := out[3].(string); !strings.HasPrefix(h, "hash:") || h != r.hash("dave") {
		t.Fatalf("username hash = %v", out[3])
	}
	nested := out[7].(map[string]interface{})
	if nested["password"] != "[REDACTED]" || nested["n"] != 3 {
		t.Fatalf("nested = %v", nested)
	}
	if out[9] != "j-1" || out[10] != "dangling" {
		t.Fatalf("tail = %v", out[8:])
	}
}

func TestIsOff(t *testing.T) {
	for _, v := range []string{"0", "false", " Off "} {
		if !isOff(v) {
			t.Fatalf("isOff(%q) = false", v)
		}
	}
	if isOff("") || isOff("true") {
		t.Fatalf("isOff treats unset or true as off")
	}
}
