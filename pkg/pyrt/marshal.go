package pyrt

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrt/internal/runtime"
)

// Object is the runtime value interface, aliased so embedders can name
// it without reaching into internal packages.
type Object = runtime.Object

// Marshaller handles conversion between Go and runtime values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a runtime Object. The result is a new
// reference; release it with Release when done.
func (m *Marshaller) ToValue(val interface{}) (Object, error) {
	if val == nil {
		return runtime.None{}, nil
	}

	// Already an Object: hand back an extra reference.
	if obj, ok := val.(Object); ok {
		runtime.IncRef(obj)
		return obj, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return runtime.Int{Value: v.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return runtime.Int{Value: int64(v.Uint())}, nil
	case reflect.Float32, reflect.Float64:
		return runtime.Float{Value: v.Float()}, nil
	case reflect.Bool:
		return runtime.Bool{Value: v.Bool()}, nil
	case reflect.String:
		return runtime.NewStr(v.String()), nil
	case reflect.Slice:
		if b, ok := val.([]byte); ok {
			return runtime.NewBytes(b), nil
		}
		return m.sliceToList(v)
	case reflect.Map:
		return m.mapToDict(v)
	default:
		return nil, fmt.Errorf("pyrt: unsupported Go type %s", v.Type())
	}
}

// FromValue converts a runtime Object back to a plain Go value. The
// object is borrowed, not consumed.
func (m *Marshaller) FromValue(obj Object) (interface{}, error) {
	switch o := obj.(type) {
	case nil, runtime.None:
		return nil, nil
	case runtime.Bool:
		return o.Value, nil
	case runtime.Int:
		return o.Value, nil
	case runtime.Float:
		return o.Value, nil
	case *runtime.Str:
		return o.Value, nil
	case *runtime.Bytes:
		return append([]byte(nil), o.Value...), nil
	case *runtime.Tuple:
		return m.itemsToSlice(o.Items)
	case *runtime.List:
		return m.itemsToSlice(o.Items)
	case *runtime.Dict:
		result := make(map[string]interface{}, len(o.Keys()))
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			gv, err := m.FromValue(v)
			if err != nil {
				return nil, fmt.Errorf("dict value %q: %w", k, err)
			}
			result[k] = gv
		}
		return result, nil
	default:
		return nil, fmt.Errorf("pyrt: unsupported value type %s", obj.Type())
	}
}

func (m *Marshaller) sliceToList(v reflect.Value) (Object, error) {
	elements := make([]Object, v.Len())
	for i := 0; i < v.Len(); i++ {
		el, err := m.ToValue(v.Index(i).Interface())
		if err != nil {
			for _, done := range elements[:i] {
				runtime.DecRef(done)
			}
			return nil, err
		}
		elements[i] = el
	}
	list := runtime.NewList(elements...)
	for _, el := range elements {
		runtime.DecRef(el)
	}
	return list, nil
}

func (m *Marshaller) mapToDict(v reflect.Value) (Object, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("pyrt: dict keys must be strings, got %s", v.Type().Key())
	}
	dict := runtime.NewDict()
	iter := v.MapRange()
	for iter.Next() {
		el, err := m.ToValue(iter.Value().Interface())
		if err != nil {
			runtime.DecRef(dict)
			return nil, fmt.Errorf("map value: %w", err)
		}
		dict.Set(iter.Key().String(), el)
		runtime.DecRef(el)
	}
	return dict, nil
}

func (m *Marshaller) itemsToSlice(items []Object) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, it := range items {
		v, err := m.FromValue(it)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Release drops a reference obtained from ToValue or an engine call.
func Release(obj Object) { runtime.DecRef(obj) }
