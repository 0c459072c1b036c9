package facet

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Encode converts a set into plain JSON-friendly values.
func Encode(s Set) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range Canonical(s) {
		switch typed := v.(type) {
		case Text:
			out[string(k)] = string(typed)
		case List:
			out[string(k)] = []string(typed)
		case Bool:
			out[string(k)] = bool(typed)
		case Range:
			m := map[string]any{}
			if typed.Min != "" {
				m["min"] = typed.Min
			}
			if typed.Max != "" {
				m["max"] = typed.Max
			}
			out[string(k)] = m
		case Geo:
			m := map[string]any{"lat": *typed.Lat, "lon": *typed.Lon}
			if typed.Distance != nil {
				m["distance"] = *typed.Distance
			}
			out[string(k)] = m
		}
	}
	return out
}

// Decode is the inverse of Encode. Known keys are decoded with their declared
// kind; unknown keys are decoded by shape. Values that do not fit are skipped
// and reported in the returned error list.
func Decode(raw map[string]any) (Set, []error) {
	out := make(Set, len(raw))
	var errs []error

	for name, rawValue := range raw {
		key := Key(name)
		kind, known := Kinds[key]
		if !known {
			kind = guessKind(rawValue)
		}

		v, err := decodeValue(kind, rawValue)
		if err != nil {
			errs = append(errs, fmt.Errorf("facet %q: %w", name, err))
			continue
		}

		if n, ok := Normalize(v); ok {
			out[key] = n
		}
	}

	return out, errs
}

func decodeValue(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %T", kind, raw)
		}
		return Text(s), nil
	case KindList:
		switch typed := raw.(type) {
		case string:
			return List{typed}, nil
		default:
			var l []string
			if err := mapstructure.Decode(raw, &l); err != nil {
				return nil, err
			}
			return List(l), nil
		}
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %T", kind, raw)
		}
		return Bool(b), nil
	case KindRange:
		var r Range
		cfg := &mapstructure.DecoderConfig{
			Result:           &r,
			WeaklyTypedInput: true,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, err
		}
		return r, nil
	case KindGeo:
		var g Geo
		cfg := &mapstructure.DecoderConfig{
			Result:           &g,
			WeaklyTypedInput: true,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}

func guessKind(raw any) Kind {
	switch typed := raw.(type) {
	case bool:
		return KindBool
	case []any, []string:
		return KindList
	case map[string]any:
		if _, ok := typed["lat"]; ok {
			return KindGeo
		}
		return KindRange
	default:
		return KindText
	}
}

// String renders a value for display.
func String(v Value) string {
	switch typed := v.(type) {
	case Text:
		return string(typed)
	case List:
		return fmt.Sprintf("%v", []string(typed))
	case Bool:
		return strconv.FormatBool(bool(typed))
	case Range:
		return fmt.Sprintf("%s..%s", typed.Min, typed.Max)
	case Geo:
		n, ok := NormalizeGeo(typed)
		if !ok {
			return ""
		}
		s := fmt.Sprintf("%g,%g", *n.Lat, *n.Lon)
		if n.Distance != nil {
			s += " " + FormatDistance(*n.Distance)
		}
		return s
	default:
		return ""
	}
}
