package form

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePairs splits "key=value" arguments. Repeated keys keep every value
// in order.
func ParsePairs(args []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q (want key=value)", a)
		}
		out[k] = append(out[k], v)
	}
	return out, nil
}

// Coerce converts raw string values to the types the schema expects:
// ranges become ints, bools are parsed, and multi fields take repeated or
// comma-separated values. Fields the schema does not know stay strings so
// Validate can report them.
func Coerce(s Schema, raw map[string][]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, vals := range raw {
		f, ok := s.Field(name)
		if !ok {
			out[name] = strings.Join(vals, ",")
			continue
		}
		last := strings.TrimSpace(vals[len(vals)-1])

		switch f.Kind {
		case KindRange:
			n, err := strconv.Atoi(last)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a whole number", name, last)
			}
			out[name] = n
		case KindBool:
			b, err := strconv.ParseBool(last)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not true or false", name, last)
			}
			out[name] = b
		case KindMulti:
			items := []string{}
			for _, v := range vals {
				for _, it := range strings.Split(v, ",") {
					if it = strings.TrimSpace(it); it != "" {
						items = append(items, it)
					}
				}
			}
			out[name] = items
		default:
			out[name] = vals[len(vals)-1]
		}
	}
	return out, nil
}
