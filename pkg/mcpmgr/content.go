package mcpmgr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ContentType tags a ContentItem.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentResource ContentType = "resource"
)

// ContentItem is the normalized unit of tool, prompt and resource output.
// Text items carry Text; image items carry base64 Data and MimeType; resource
// items carry URI or URL plus whatever inline payload the server sent.
type ContentItem struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`
	MimeType string      `json:"mimeType,omitempty"`
	URI      string      `json:"uri,omitempty"`
	URL      string      `json:"url,omitempty"`
}

// ToolCallResult is the normalized outcome of an invocation.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
	// StructuredContent is passed through untouched when a tool returns it.
	StructuredContent any `json:"structuredContent,omitempty"`
}

// TextItem builds a text ContentItem.
func TextItem(text string) ContentItem {
	return ContentItem{Type: ContentText, Text: text}
}

// NormalizeContent maps one go-sdk content value onto a ContentItem. Shapes
// without a dedicated variant become text holding their JSON form.
func NormalizeContent(c mcp.Content) ContentItem {
	switch v := c.(type) {
	case *mcp.TextContent:
		return TextItem(v.Text)
	case *mcp.ImageContent:
		return ContentItem{
			Type:     ContentImage,
			Data:     base64.StdEncoding.EncodeToString(v.Data),
			MimeType: v.MIMEType,
		}
	case *mcp.ResourceLink:
		return ContentItem{Type: ContentResource, URI: v.URI, MimeType: v.MIMEType, Text: v.Name}
	case *mcp.EmbeddedResource:
		if v.Resource == nil {
			return TextItem(serialize(v))
		}
		item := ContentItem{
			Type:     ContentResource,
			URI:      v.Resource.URI,
			MimeType: v.Resource.MIMEType,
			Text:     v.Resource.Text,
		}
		if len(v.Resource.Blob) > 0 {
			item.Data = base64.StdEncoding.EncodeToString(v.Resource.Blob)
		}
		return item
	default:
		return TextItem(serialize(c))
	}
}

// NormalizeContents maps every entry and never drops one.
func NormalizeContents(cs []mcp.Content) []ContentItem {
	out := make([]ContentItem, 0, len(cs))
	for _, c := range cs {
		out = append(out, NormalizeContent(c))
	}
	return out
}

// NormalizeRaw maps an already decoded JSON value (or raw JSON bytes) onto a
// ContentItem. It recognizes the text, image and resource shapes of the
// protocol; a bare string is already text and is kept verbatim.
func NormalizeRaw(v any) ContentItem {
	switch raw := v.(type) {
	case ContentItem:
		return raw
	case string:
		return TextItem(raw)
	case json.RawMessage:
		return normalizeBytes(raw)
	case []byte:
		return normalizeBytes(raw)
	case map[string]any:
		return normalizeMap(raw)
	default:
		return TextItem(serialize(v))
	}
}

func normalizeBytes(b []byte) ContentItem {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return TextItem(string(b))
	}
	return NormalizeRaw(decoded)
}

func normalizeMap(m map[string]any) ContentItem {
	typ, _ := m["type"].(string)
	switch typ {
	case "text":
		if text, ok := m["text"].(string); ok {
			return TextItem(text)
		}
	case "image":
		data, dok := m["data"].(string)
		mime, mok := m["mimeType"].(string)
		if dok && mok {
			return ContentItem{Type: ContentImage, Data: data, MimeType: mime}
		}
	case "resource", "resource_link":
		if res, ok := m["resource"].(map[string]any); ok {
			m = res
		}
		uri, _ := m["uri"].(string)
		url, _ := m["url"].(string)
		if uri != "" || url != "" {
			item := ContentItem{Type: ContentResource, URI: uri, URL: url}
			item.MimeType, _ = m["mimeType"].(string)
			item.Text, _ = m["text"].(string)
			item.Data, _ = m["blob"].(string)
			return item
		}
	}
	return TextItem(serialize(m))
}

// serialize renders v as JSON, falling back to fmt when v cannot be encoded.
func serialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// coercePromptArgs turns arbitrary argument values into the strings prompt
// arguments are defined as.
func coercePromptArgs(args map[string]any) map[string]string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(s)
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return serialize(v)
	}
}

func promptMessageItem(msg *mcp.PromptMessage) ContentItem {
	if msg == nil {
		return TextItem("")
	}
	if text, ok := msg.Content.(*mcp.TextContent); ok {
		return TextItem(text.Text)
	}
	return TextItem(serialize(msg.Content))
}

func resourceContentsItem(rc *mcp.ResourceContents) ContentItem {
	if rc != nil && rc.Text != "" && len(rc.Blob) == 0 {
		return TextItem(rc.Text)
	}
	return TextItem(serialize(rc))
}
