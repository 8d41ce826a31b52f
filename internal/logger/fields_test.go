package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  ollama  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	require.Len(t, fields, 1)
	assert.Equal(t, "provider", fields[0].Key)
	assert.Equal(t, "ollama", fields[0].String)
	assert.Empty(t, StringFields())
}

func TestWithCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "openai", "gpt-4o-mini").Info("call")

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "openai", ctx[FieldProvider])
	assert.Equal(t, "gpt-4o-mini", ctx[FieldModel])

	// nil logger falls back to a no-op logger
	WithCommonFields(nil, "gemini", "").Info("no panic")
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "  hello ", limit: 10, want: "hello"},
		{name: "truncated", in: "abcdef", limit: 3, want: "abc..."},
		{name: "zero limit", in: "abc", limit: 0, want: ""},
		{name: "multibyte", in: "héllo wörld", limit: 5, want: "héllo..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, TruncateForLog(tc.in, tc.limit))
		})
	}
}
