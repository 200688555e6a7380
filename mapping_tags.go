package objsync

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag("json")
	sentinel.Tag("sync")
}

// MappingFromStruct derives a MappingSpec from the exported fields of T.
//
// The source property is the field's json name. The sync tag takes the form
// `sync:"target,opt,..."`: target renames the property ("-" ignores it) and
// the options are "skip" (SkipSetter) and "merge" (deep merge instead of
// nesting). Struct fields nest with their own derived spec, and slices of
// structs map their items the same way.
func MappingFromStruct[T any]() (MappingSpec, error) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("objsync: mapping source %s is not a struct", rt)
	}
	return specFromMetadata(rt, sentinel.Scan[T](), map[reflect.Type]bool{})
}

func specFromMetadata(rt reflect.Type, meta sentinel.Metadata, visiting map[reflect.Type]bool) (MappingSpec, error) {
	if visiting[rt] {
		return nil, fmt.Errorf("objsync: recursive struct %s cannot be mapped", rt)
	}
	visiting[rt] = true
	defer delete(visiting, rt)

	spec := MappingSpec{}
	for _, field := range meta.Fields {
		structField := rt.FieldByIndex(field.Index)
		source, ok := jsonName(field, structField)
		if !ok {
			continue
		}
		rule, err := ruleFromField(field, structField, visiting)
		if err != nil {
			return nil, fmt.Errorf("objsync: field %s.%s: %w", rt.Name(), field.Name, err)
		}
		spec[source] = rule
	}
	return spec, nil
}

func ruleFromField(field sentinel.FieldMetadata, structField reflect.StructField, visiting map[reflect.Type]bool) (Rule, error) {
	target, opts := parseSyncTag(tagValue(field, structField, "sync"))
	if target == IgnoreTarget {
		return Ignore(), nil
	}
	rule := Rule{Target: target, SkipSetter: opts["skip"]}

	elem := field.ReflectType
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	switch {
	case isTimeType(elem):
		return rule, nil
	case elem.Kind() == reflect.Struct:
		if opts["merge"] {
			rule.Sub = MergeAll()
			return rule, nil
		}
		nested, err := specFromType(elem, visiting)
		if err != nil {
			return Rule{}, err
		}
		rule.Sub = Nest(nested)
	case elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array:
		item := elem.Elem()
		for item.Kind() == reflect.Pointer {
			item = item.Elem()
		}
		if item.Kind() != reflect.Struct || isTimeType(item) {
			return rule, nil
		}
		if opts["merge"] {
			rule.Items = MergeAll()
			return rule, nil
		}
		nested, err := specFromType(item, visiting)
		if err != nil {
			return Rule{}, err
		}
		rule.Items = Nest(nested)
	case elem.Kind() == reflect.Map && opts["merge"]:
		rule.Sub = MergeAll()
	}
	return rule, nil
}

// specFromType uses registered sentinel metadata when present and falls back
// to reflection for nested types sentinel has not scanned.
func specFromType(rt reflect.Type, visiting map[reflect.Type]bool) (MappingSpec, error) {
	if meta, ok := sentinel.Lookup(rt.String()); ok {
		return specFromMetadata(rt, meta, visiting)
	}
	meta := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		meta.Fields = append(meta.Fields, sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
		})
	}
	return specFromMetadata(rt, meta, visiting)
}

func tagValue(field sentinel.FieldMetadata, structField reflect.StructField, name string) string {
	if value, ok := field.Tags[name]; ok {
		return value
	}
	return structField.Tag.Get(name)
}

// jsonName returns the property name encoding/json would use.
func jsonName(field sentinel.FieldMetadata, structField reflect.StructField) (string, bool) {
	if !structField.IsExported() {
		return "", false
	}
	tag := tagValue(field, structField, "json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, true
}

func parseSyncTag(tag string) (string, map[string]bool) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, opt := range parts[1:] {
		if opt = strings.TrimSpace(opt); opt != "" {
			opts[opt] = true
		}
	}
	return strings.TrimSpace(parts[0]), opts
}

var timeType = reflect.TypeFor[time.Time]()

// dates are leaves
func isTimeType(rt reflect.Type) bool {
	return rt == timeType
}
