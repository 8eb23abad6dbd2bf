package luahost

import (
	"fmt"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a Go value produced by a loader into a Lua value. Lua values
// pass through; maps, slices and structs become tables; functions with the
// shape func(...any) (any, error) become Lua functions; anything else is
// wrapped in userdata.
func ToLua(L *lua.LState, v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}
	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case lua.LGFunction:
		return L.NewFunction(val)
	case func(*lua.LState) int:
		return L.NewFunction(val)
	case func(...any) (any, error):
		return L.NewFunction(wrapFunc(val))
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, ToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, ToLua(L, item))
		}
		return t
	}
	return reflectToLua(L, v)
}

func reflectToLua(L *lua.LState, v any) lua.LValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32:
		return lua.LNumber(rv.Float())
	case reflect.Pointer:
		if rv.IsNil() {
			return lua.LNil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return structToTable(L, rv.Elem())
		}
	case reflect.Slice, reflect.Array:
		t := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, ToLua(L, rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(ToLua(L, iter.Key().Interface()), ToLua(L, iter.Value().Interface()))
		}
		return t
	case reflect.Struct:
		return structToTable(L, rv)
	}
	ud := L.NewUserData()
	ud.Value = v
	return ud
}

func structToTable(L *lua.LState, rv reflect.Value) *lua.LTable {
	t := L.NewTable()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		t.RawSetString(name, ToLua(L, rv.Field(i).Interface()))
	}
	return t
}

func wrapFunc(fn func(...any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		args := make([]any, L.GetTop())
		for i := range args {
			args[i] = ToGo(L.Get(i + 1))
		}
		result, err := fn(args...)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(ToLua(L, result))
		return 1
	}
}

// ToGo converts a Lua value to plain Go data. Sequences become []any, other
// tables map[string]any; functions convert to nil.
func ToGo(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	if n := t.Len(); n > 0 {
		count := 0
		t.ForEach(func(_, _ lua.LValue) { count++ })
		if count == n {
			items := make([]any, n)
			for i := 1; i <= n; i++ {
				items[i-1] = toGo(t.RawGetInt(i), visited)
			}
			return items
		}
	}
	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprint(float64(kv))
		default:
			key = k.String()
		}
		m[key] = toGo(v, visited)
	})
	return m
}
