package spec

import "strings"

// Operation model shared by the client registry and the exporter.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// Methods lists the HTTP methods recognized under a path item.
var Methods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

// IsMethod reports whether key names an operation under a path item.
func IsMethod(key string) bool {
	for _, m := range Methods {
		if string(m) == key {
			return true
		}
	}
	return false
}

// Location tags of parameter declarations.
const (
	InPath     = "path"
	InQuery    = "query"
	InHeader   = "header"
	InCookie   = "cookie"
	InFormData = "formData"
	InBody     = "body"
)

type Operation struct {
	Path        string
	Method      HttpMethod
	OperationID string
	Summary     string
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
}

// Key returns "METHOD path", used in logs and error messages.
func (o Operation) Key() string {
	return strings.ToUpper(string(o.Method)) + " " + o.Path
}

type Parameter struct {
	Name     string
	In       string
	Required bool
	// Schema is the declared `schema` member (v3 and v2 body parameters).
	Schema map[string]any
	// Raw is the whole declaration; v2 non-body parameters carry their
	// schema keywords inline.
	Raw map[string]any
}

type RequestBody struct {
	Required bool
	// Content is ordered as declared in the document.
	Content []Media
}

// ContentTypes returns the declared content types in document order.
func (rb *RequestBody) ContentTypes() []string {
	if rb == nil {
		return nil
	}
	out := make([]string, 0, len(rb.Content))
	for _, m := range rb.Content {
		out = append(out, m.ContentType)
	}
	return out
}

// Media returns the declaration for contentType, if any.
func (rb *RequestBody) Media(contentType string) (Media, bool) {
	if rb == nil {
		return Media{}, false
	}
	for _, m := range rb.Content {
		if m.ContentType == contentType {
			return m, true
		}
	}
	return Media{}, false
}

type Media struct {
	ContentType string
	// Schema is nil for v2 `consumes` entries; their payload schema lives
	// on the body parameter.
	Schema map[string]any
}
