package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferContentType(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "stdin", path: "-", want: DefaultContentType},
		{name: "known extension", path: "/tmp/report.json", want: "application/json"},
		{name: "unknown extension", path: "data.zzz", want: DefaultContentType},
		{name: "no extension", path: "Makefile", want: DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferContentType(testTypes, tt.path))
		})
	}
}

func TestSystemTypes(t *testing.T) {
	types := SystemTypes()

	assert.Equal(t, "application/json", types.TypeForPath("a.json"))
	assert.Contains(t, types.Extensions("application/json"), "json")
	assert.Empty(t, types.Extensions("x-not/registered"))
}
