package opschema

import (
	"strings"

	"github.com/mark3labs/oasclient/internal/spec"
)

// DefaultContentType is used when an operation declares no request content type.
const DefaultContentType = "application/json"

// DefaultXMLRoot names the root element of XML bodies whose schema has no `xml.name`.
const DefaultXMLRoot = "body"

// Encoding is the body transformation applied for a content type.
type Encoding string

const (
	EncodingJSON       Encoding = "json"
	EncodingMultipart  Encoding = "multipart"
	EncodingURLEncoded Encoding = "urlencoded"
	EncodingXML        Encoding = "xml"
)

// HasPayload reports whether method carries a request payload.
func HasPayload(method spec.HttpMethod) bool {
	switch spec.HttpMethod(strings.ToLower(string(method))) {
	case spec.POST, spec.PUT, spec.PATCH:
		return true
	}
	return false
}

// SelectContentType returns explicit when set, else the first declared
// content type, else DefaultContentType.
func SelectContentType(explicit string, declared []string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if len(declared) > 0 {
		return declared[0]
	}
	return DefaultContentType
}

// MediaType strips parameters and lowercases a content type.
func MediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// EncodingFor classifies a content type.
func EncodingFor(contentType string) Encoding {
	mt := MediaType(contentType)
	switch {
	case mt == "multipart/form-data":
		return EncodingMultipart
	case mt == "application/x-www-form-urlencoded":
		return EncodingURLEncoded
	case strings.HasSuffix(mt, "/xml") || strings.HasSuffix(mt, "+xml"):
		return EncodingXML
	}
	return EncodingJSON
}

// RequestBodySchema returns the declared schema for contentType, falling
// back to the first declared content type when contentType is undeclared.
func RequestBodySchema(rb *spec.RequestBody, contentType string) map[string]any {
	if rb == nil || len(rb.Content) == 0 {
		return nil
	}
	if m, ok := rb.Media(contentType); ok {
		return m.Schema
	}
	return rb.Content[0].Schema
}

// XMLRoot picks the root element name for an XML body: the request body
// schema's `xml.name`, then the legacy body parameter's, then DefaultXMLRoot.
func XMLRoot(op spec.Operation, set Set, contentType string) string {
	if schema := RequestBodySchema(op.RequestBody, contentType); schema != nil {
		if x := spec.Map(schema, "xml"); x != nil {
			if name := spec.String(x, "name"); name != "" {
				return name
			}
		}
	}
	if set.XMLName != "" {
		return set.XMLName
	}
	return DefaultXMLRoot
}
