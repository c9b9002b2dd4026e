package mcpmgr

import (
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   mcp.Content
		want ContentItem
	}{
		{
			name: "text",
			in:   &mcp.TextContent{Text: "hello"},
			want: ContentItem{Type: ContentText, Text: "hello"},
		},
		{
			name: "image",
			in:   &mcp.ImageContent{Data: []byte("hi"), MIMEType: "image/png"},
			want: ContentItem{Type: ContentImage, Data: "aGk=", MimeType: "image/png"},
		},
		{
			name: "resource link",
			in:   &mcp.ResourceLink{URI: "file:///a.txt", Name: "a.txt", MIMEType: "text/plain"},
			want: ContentItem{Type: ContentResource, URI: "file:///a.txt", MimeType: "text/plain", Text: "a.txt"},
		},
		{
			name: "embedded text resource",
			in: &mcp.EmbeddedResource{Resource: &mcp.ResourceContents{
				URI: "file:///b.md", MIMEType: "text/markdown", Text: "# B",
			}},
			want: ContentItem{Type: ContentResource, URI: "file:///b.md", MimeType: "text/markdown", Text: "# B"},
		},
		{
			name: "embedded blob resource",
			in: &mcp.EmbeddedResource{Resource: &mcp.ResourceContents{
				URI: "file:///c.bin", MIMEType: "application/octet-stream", Blob: []byte{0xff},
			}},
			want: ContentItem{Type: ContentResource, URI: "file:///c.bin", MimeType: "application/octet-stream", Data: "/w=="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContent(tt.in))
		})
	}
}

func TestNormalizeContentsNeverDrops(t *testing.T) {
	items := NormalizeContents([]mcp.Content{
		&mcp.TextContent{Text: "a"},
		&mcp.AudioContent{Data: []byte("x"), MIMEType: "audio/mpeg"},
		&mcp.TextContent{Text: "b"},
	})
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Text)
	assert.Equal(t, ContentText, items[1].Type)
	assert.Contains(t, items[1].Text, "audio/mpeg")
	assert.Equal(t, "b", items[2].Text)

	assert.NotNil(t, NormalizeContents(nil))
	assert.Empty(t, NormalizeContents(nil))
}

func TestNormalizeRaw(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ContentItem
	}{
		{"bare string", "plain words", TextItem("plain words")},
		{"text map", map[string]any{"type": "text", "text": "hi"}, TextItem("hi")},
		{
			"image map",
			map[string]any{"type": "image", "data": "aGk=", "mimeType": "image/png"},
			ContentItem{Type: ContentImage, Data: "aGk=", MimeType: "image/png"},
		},
		{
			"image without mime degrades to text",
			map[string]any{"type": "image", "data": "aGk="},
			TextItem(`{"data":"aGk=","type":"image"}`),
		},
		{
			"nested resource",
			map[string]any{"type": "resource", "resource": map[string]any{"uri": "file:///x", "text": "body"}},
			ContentItem{Type: ContentResource, URI: "file:///x", Text: "body"},
		},
		{
			"resource with url",
			map[string]any{"type": "resource_link", "url": "https://example.com/doc"},
			ContentItem{Type: ContentResource, URL: "https://example.com/doc"},
		},
		{"unknown shape", map[string]any{"kind": "chart", "n": float64(3)}, TextItem(`{"kind":"chart","n":3}`)},
		{"raw json", json.RawMessage(`{"type":"text","text":"from bytes"}`), TextItem("from bytes")},
		{"invalid json bytes", []byte("not json"), TextItem("not json")},
		{"number", 42, TextItem("42")},
		{"item passthrough", TextItem("kept"), TextItem("kept")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRaw(tt.in))
		})
	}
}

func TestCoercePromptArgs(t *testing.T) {
	got := coercePromptArgs(map[string]any{
		"s":     "text",
		"n":     float64(2.5),
		"i":     7,
		"b":     false,
		"nil":   nil,
		"obj":   map[string]any{"k": "v"},
		"num":   json.Number("10"),
		"whole": float64(1e6),
	})
	assert.Equal(t, map[string]string{
		"s":     "text",
		"n":     "2.5",
		"i":     "7",
		"b":     "false",
		"nil":   "",
		"obj":   `{"k":"v"}`,
		"num":   "10",
		"whole": "1000000",
	}, got)
	assert.Nil(t, coercePromptArgs(nil))
}

func TestResourceContentsItem(t *testing.T) {
	assert.Equal(t, TextItem("body"), resourceContentsItem(&mcp.ResourceContents{URI: "file:///a", Text: "body"}))

	item := resourceContentsItem(&mcp.ResourceContents{URI: "file:///b", Blob: []byte("x")})
	assert.Equal(t, ContentText, item.Type)
	assert.Contains(t, item.Text, "file:///b")

	assert.Equal(t, TextItem(""), promptMessageItem(nil))
}
