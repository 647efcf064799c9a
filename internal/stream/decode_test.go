package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"plain text", "hello gpu", "hello gpu"},
		{"line field", `{"line":"step 1"}`, "step 1"},
		{"line field with extras", `{"line":"step 2","level":"info"}`, "step 2"},
		{"object without line", `{"other":"x"}`, `{"other":"x"}`},
		{"empty line falls back", `{"line":""}`, `{"line":""}`},
		{"null line falls back", `{"line":null}`, `{"line":null}`},
		{"false line falls back", `{"line":false}`, `{"line":false}`},
		{"zero line falls back", `{"line":0}`, `{"line":0}`},
		{"true line", `{"line":true}`, "true"},
		{"numeric line", `{"line":42.5}`, "42.5"},
		{"exponent keeps its spelling", `{"line":1e2}`, "1e2"},
		{"array line compacted", `{"line":[1, "a"]}`, `[1,"a"]`},
		{"object line compacted", `{"line":{ "gpu": 0 }}`, `{"gpu":0}`},
		{"json array", `["line"]`, `["line"]`},
		{"json string", `"line"`, `"line"`},
		{"json null", "null", "null"},
		{"broken json", `{"line":"x"`, `{"line":"x"`},
		{"empty payload", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeFrame([]byte(tt.payload)))
		})
	}
}
