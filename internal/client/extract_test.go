package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) any {
	t.Helper()
	var evt any
	require.NoError(t, json.Unmarshal([]byte(raw), &evt))
	return evt
}

func TestExtractText_Shapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"plain"`, "plain"},
		{"delta string", `{"delta":"d"}`, "d"},
		{"output_text", `{"output_text":"o"}`, "o"},
		{"delta.text", `{"delta":{"text":"dt"}}`, "dt"},
		{"text", `{"text":"t"}`, "t"},
		{"content[0].text", `{"content":[{"text":"ct"}]}`, "ct"},
		{"delta.content[0].text", `{"delta":{"content":[{"text":"dct"}]}}`, "dct"},
		{"delta.output_text", `{"delta":{"output_text":"dot"}}`, "dot"},
		{"no match", `{"foo":1}`, ""},
		{"empty content array", `{"content":[]}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractText(parse(t, tc.raw)))
		})
	}
}

func TestExtractText_PriorityOrder(t *testing.T) {
	// delta (string) outranks output_text
	evt := parse(t, `{"delta":"first","output_text":"second"}`)
	require.Equal(t, "first", ExtractText(evt))

	// output_text outranks delta.text
	evt = parse(t, `{"output_text":"first","delta":{"text":"second"}}`)
	require.Equal(t, "first", ExtractText(evt))

	// delta.text outranks text
	evt = parse(t, `{"delta":{"text":"first"},"text":"second"}`)
	require.Equal(t, "first", ExtractText(evt))
}
