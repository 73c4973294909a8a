package strategy

// Typed helpers for building declarations from plain struct fields. Settings
// decoded from JSON arrive as float64, so the setters coerce the common
// numeric shapes instead of requiring an exact type match.

// IntParam declares an integer parameter backed by p.
func IntParam(name string, def int64, p *int64) Parameter {
	return Parameter{
		Name:    name,
		Default: def,
		Get:     func() any { return *p },
		Set: func(v any) bool {
			i, ok := asInt(v)
			if ok {
				*p = i
			}
			return ok
		},
	}
}

// FloatParam declares a float parameter backed by p.
func FloatParam(name string, def float64, p *float64) Parameter {
	return Parameter{
		Name:    name,
		Default: def,
		Get:     func() any { return *p },
		Set: func(v any) bool {
			f, ok := asFloat(v)
			if ok {
				*p = f
			}
			return ok
		},
	}
}

// StringParam declares a string parameter backed by p.
func StringParam(name string, def string, p *string) Parameter {
	return Parameter{
		Name:    name,
		Default: def,
		Get:     func() any { return *p },
		Set: func(v any) bool {
			s, ok := v.(string)
			if ok {
				*p = s
			}
			return ok
		},
	}
}

// BoolParam declares a boolean parameter backed by p.
func BoolParam(name string, def bool, p *bool) Parameter {
	return Parameter{
		Name:    name,
		Default: def,
		Get:     func() any { return *p },
		Set: func(v any) bool {
			b, ok := v.(bool)
			if ok {
				*p = b
			}
			return ok
		},
	}
}

// IntVar declares an integer variable backed by p.
func IntVar(name string, p *int64) Variable {
	return Variable{Name: name, Get: func() any { return *p }}
}

// FloatVar declares a float variable backed by p.
func FloatVar(name string, p *float64) Variable {
	return Variable{Name: name, Get: func() any { return *p }}
}

// StringVar declares a string variable backed by p.
func StringVar(name string, p *string) Variable {
	return Variable{Name: name, Get: func() any { return *p }}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
