package validation

import "sort"

// Errors maps field names to user-facing messages. An empty set means the
// validated scope is valid.
type Errors map[string]string

// Empty reports whether there are no errors.
func (e Errors) Empty() bool { return len(e) == 0 }

// Fields returns the failing field names sorted.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for name := range e {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Only returns the subset of errors for names.
func (e Errors) Only(names ...string) Errors {
	out := make(Errors)
	for _, name := range names {
		if msg, ok := e[name]; ok {
			out[name] = msg
		}
	}
	return out
}

// Merge copies other into a new set; entries from other win.
func (e Errors) Merge(other Errors) Errors {
	out := make(Errors, len(e)+len(other))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
