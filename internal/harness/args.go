package harness

import (
	"fmt"
	"math"
	"strconv"
)

// argError marks a malformed step rather than a failed operation.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

// args are a step's arguments after reference resolution. YAML decodes
// integers as int, so numeric getters accept any integral number.
type args map[string]any

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &argError{msg: fmt.Sprintf("missing argument %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{msg: fmt.Sprintf("argument %q: want string, got %T", key, v)}
	}
	return s, nil
}

func (a args) optStr(key string, dst *string) error {
	if _, ok := a[key]; !ok {
		return nil
	}
	s, err := a.str(key)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

func (a args) optStrPtr(key string) (*string, error) {
	if _, ok := a[key]; !ok {
		return nil, nil
	}
	s, err := a.str(key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (a args) int(key string) (int64, error) {
	v, ok := a[key]
	if !ok {
		return 0, &argError{msg: fmt.Sprintf("missing argument %q", key)}
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, &argError{msg: fmt.Sprintf("argument %q: %v", key, err)}
	}
	return n, nil
}

func (a args) optInt(key string, dst *int64) error {
	if _, ok := a[key]; !ok {
		return nil
	}
	n, err := a.int(key)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func (a args) optIntPtr(key string) (*int64, error) {
	if _, ok := a[key]; !ok {
		return nil, nil
	}
	n, err := a.int(key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (a args) optBool(key string, dst *bool) error {
	p, err := a.optBoolPtr(key)
	if err != nil || p == nil {
		return err
	}
	*dst = *p
	return nil
}

func (a args) optBoolPtr(key string) (*bool, error) {
	v, ok := a[key]
	if !ok {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, &argError{msg: fmt.Sprintf("argument %q: want bool, got %T", key, v)}
	}
	return &b, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}
