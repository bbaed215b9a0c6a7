package errmap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Body is the decoded error payload of a response.
type Body struct {
	Message string
	Errors  map[string][]string
}

type rawBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Detail  string          `json:"detail"`
	Title   string          `json:"title"`
	Errors  json.RawMessage `json:"errors"`
}

type rawItem struct {
	Field   string   `json:"field"`
	Path    string   `json:"path"`
	Param   string   `json:"param"`
	Message string   `json:"message"`
	Msg     string   `json:"msg"`
	Errors  []string `json:"errors"`
}

// ParseBody decodes a JSON error body. ok is false when data is not a JSON
// object.
func ParseBody(data []byte) (Body, bool) {
	var raw rawBody
	if err := json.Unmarshal(data, &raw); err != nil {
		return Body{}, false
	}
	body := Body{Message: firstNonEmpty(raw.Message, errorText(raw.Error), raw.Detail, raw.Title)}
	body.Errors = parseErrors(raw.Errors)
	return body, true
}

func parseErrors(data json.RawMessage) map[string][]string {
	if len(data) == 0 {
		return nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err == nil {
		out := make(map[string][]string, len(keyed))
		for key, value := range keyed {
			if msgs := messages(value); len(msgs) > 0 {
				out[key] = append(out[key], msgs...)
			}
		}
		return nonEmpty(out)
	}

	var items []rawItem
	if err := json.Unmarshal(data, &items); err == nil {
		out := make(map[string][]string, len(items))
		for _, item := range items {
			key := firstNonEmpty(item.Field, item.Path, item.Param)
			msgs := item.Errors
			if msg := firstNonEmpty(item.Message, item.Msg); msg != "" {
				msgs = append([]string{msg}, msgs...)
			}
			if len(msgs) > 0 {
				out[key] = append(out[key], msgs...)
			}
		}
		return nonEmpty(out)
	}
	return nil
}

// messages accepts a string, a list of strings, or an object with a message.
func messages(value json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(value, &single); err == nil {
		return []string{single}
	}
	var list []any
	if err := json.Unmarshal(value, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch typed := item.(type) {
			case string:
				out = append(out, typed)
			case map[string]any:
				if msg, ok := typed["message"].(string); ok {
					out = append(out, msg)
				}
			case nil:
			default:
				out = append(out, fmt.Sprint(typed))
			}
		}
		return out
	}
	var item rawItem
	if err := json.Unmarshal(value, &item); err == nil {
		if msg := firstNonEmpty(item.Message, item.Msg); msg != "" {
			return []string{msg}
		}
		return item.Errors
	}
	return nil
}

func errorText(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	var item rawItem
	if err := json.Unmarshal(value, &item); err == nil {
		return firstNonEmpty(item.Message, item.Msg)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func nonEmpty(m map[string][]string) map[string][]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
