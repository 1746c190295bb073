// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package params parses the key=value argument convention shared by every
// platform action and decodes the result into typed request structs.
package params

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"ccos/internal/apierr"
)

// Params holds the parameters of one invocation. Later keys override earlier ones.
type Params map[string]string

// Parse accepts arguments of the form "k=v&k2=v2" or separate "k=v" words.
func Parse(args []string) (Params, error) {
	p := Params{}
	for _, arg := range args {
		for _, pair := range strings.Split(arg, "&") {
			if pair == "" {
				continue
			}
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, apierr.Usage(fmt.Sprintf("parameter %q is not of the form key=value", pair), "key=value&key2=value2")
			}
			k, err := url.PathUnescape(key)
			if err != nil {
				return nil, apierr.Usage(fmt.Sprintf("parameter name %q is not valid: %v", key, err), "key=value")
			}
			v, err := url.PathUnescape(value)
			if err != nil {
				return nil, apierr.Usage(fmt.Sprintf("value of %q is not valid: %v", k, err), "key=value")
			}
			k = strings.TrimSpace(k)
			if k == "" {
				return nil, apierr.Usage("parameter with empty name", "key=value")
			}
			p[k] = v
		}
	}
	return p, nil
}

func (p Params) Get(key string) string {
	return p[key]
}

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Missing returns the names of required keys that are absent or empty.
func (p Params) Missing(required ...string) []string {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(p[k]) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// String renders the parameters in the k=v&k2=v2 form, sorted by key.
func (p Params) String() string {
	var b strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(k))
		b.WriteByte('=')
		b.WriteString(escape(p[k]))
	}
	return b.String()
}

// escape is the inverse of the unescaping done by Parse, which keeps '+' literal.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var sensitive = []string{"token", "secret", "key", "password"}

// Redacted returns a copy safe to persist: values of keys that look like
// credentials are masked.
func Redacted(p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		lower := strings.ToLower(k)
		masked := false
		for _, s := range sensitive {
			if strings.Contains(lower, s) {
				masked = true
				break
			}
		}
		if masked {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

// Decode fills the exported fields of the struct pointed to by dst.
// Fields are matched by the `param:"name[,required]"` tag; a `default:"..."`
// tag supplies the value when the key is absent. Supported kinds are string,
// bool, the integer kinds, float64, []string (comma separated) and
// time.Duration (Go syntax or a bare number of seconds).
func Decode(p Params, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params.Decode needs a pointer to a struct, got %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag, ok := field.Tag.Lookup("param")
		if !ok || !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		required := opts == "required"

		raw, present := p[name]
		if !present || raw == "" {
			if required {
				return apierr.Usage(fmt.Sprintf("missing required parameter %q", name), name+"=...")
			}
			def, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				continue
			}
			raw = def
		}

		if err := setField(rv.Field(i), raw); err != nil {
			return apierr.Usage(fmt.Sprintf("parameter %q: %v", name, err), name+"=...")
		}
	}
	return nil
}

func setField(v reflect.Value, raw string) error {
	if v.Type() == durationType {
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", raw)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", raw)
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), v.Type().Bits())
		if err != nil {
			return fmt.Errorf("expected a number, got %q", raw)
		}
		v.SetFloat(f)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", v.Type())
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		v.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("expected a duration, got %q", raw)
	}
	return d, nil
}
