package client

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/mark3labs/oasclient/internal/opschema"
)

// File is a multipart file part. It validates as its Name, matching the
// `type: string, format: binary` schema of file parameters.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

func (f File) MarshalJSON() ([]byte, error) { return json.Marshal(f.Name) }

// fields flattens a body into its top-level members. Map bodies keep their
// values as-is so File parts survive; other values go through JSON.
func fields(body any) (map[string]any, error) {
	if m, ok := body.(map[string]any); ok {
		return m, nil
	}
	norm, err := opschema.Normalize(body)
	if err != nil {
		return nil, err
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("body must be an object, got %T", body)
	}
	return m, nil
}

func encodeMultipart(body any) (io.Reader, string, error) {
	m, err := fields(body)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range sortedKeys(m) {
		if err := writePart(w, key, m[key]); err != nil {
			return nil, "", fmt.Errorf("field %q: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, key string, value any) error {
	switch v := value.(type) {
	case File:
		return writeFile(w, key, &v)
	case *File:
		return writeFile(w, key, v)
	case []any:
		for _, item := range v {
			if err := writePart(w, key, item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, item := range v {
			if err := w.WriteField(key, item); err != nil {
				return err
			}
		}
		return nil
	default:
		s, err := formatValue(v)
		if err != nil {
			return err
		}
		return w.WriteField(key, s)
	}
}

func writeFile(w *multipart.Writer, key string, f *File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, key, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if f.Content == nil {
		return nil
	}
	_, err = io.Copy(part, f.Content)
	return err
}

// encodeForm renders body as application/x-www-form-urlencoded with keys
// sorted. Array members repeat the key.
func encodeForm(body any) (string, error) {
	m, err := fields(body)
	if err != nil {
		return "", err
	}
	values := url.Values{}
	for key, raw := range m {
		if err := addValues(values, key, raw); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
	}
	return values.Encode(), nil
}

func addValues(values url.Values, key string, raw any) error {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			s, err := formatValue(item)
			if err != nil {
				return err
			}
			values.Add(key, s)
		}
	case []string:
		for _, item := range v {
			values.Add(key, item)
		}
	default:
		s, err := formatValue(v)
		if err != nil {
			return err
		}
		values.Add(key, s)
	}
	return nil
}

// formatValue renders a scalar for a form field, path segment or query
// value. Objects are rendered as JSON.
func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case File:
		return x.Name, nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// encodeXML serializes body under a single root element. Object members
// become child elements in key order; array items repeat their element.
func encodeXML(root string, body any) ([]byte, error) {
	norm, err := opschema.Normalize(body)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := writeXML(enc, root, norm); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXML(enc *xml.Encoder, name string, v any) error {
	if items, ok := v.([]any); ok {
		for _, item := range items {
			if err := writeXML(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	switch x := v.(type) {
	case map[string]any:
		for _, key := range sortedKeys(x) {
			if err := writeXML(enc, key, x[key]); err != nil {
				return err
			}
		}
	case nil:
	default:
		s, err := formatValue(x)
		if err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(s)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
