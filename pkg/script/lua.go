// Package script lets tasks be written as sandboxed Lua snippets instead of
// Go functions. A snippet's declared inputs arrive as locals, its return
// value becomes the task result, and the sandbox strips every library that
// could reach the host system
package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Env is a Lua execution environment with a state pool for reuse across
	// invocations. States returned to the pool are reset before reuse
	Env struct {
		statePool chan *lua.State
	}

	// Compiled is a task body compiled to Lua bytecode along with its
	// declared parameter order
	Compiled struct {
		bytecode []byte
		params   []string
	}
)

const (
	statePoolSize    = 10
	globalTableIndex = -2
	arrayTableIndex  = -3
	mapTableIndex    = -3
	argLocalTemplate = "local %s = select(%d, ...)"
	globalTableName  = "_G"
)

var (
	ErrCompile   = errors.New("lua compile error")
	ErrLoad      = errors.New("lua load error")
	ErrExecution = errors.New("lua execution error")
)

// exclude lists the globals removed from every state. Scripts keep the pure
// computation libraries and lose everything that touches the host
var exclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewEnv creates a Lua execution environment
func NewEnv() *Env {
	return &Env{
		statePool: make(chan *lua.State, statePoolSize),
	}
}

// Compile wraps the source so each declared parameter arrives as a local
// variable, then compiles it to reusable bytecode
func (e *Env) Compile(source string, params []string) (*Compiled, error) {
	L := lua.NewState()
	e.setupSandbox(L)

	if err := lua.LoadString(L, wrapSource(source, params)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	return &Compiled{
		bytecode: buf.Bytes(),
		params:   params,
	}, nil
}

// Execute runs a compiled task body with the provided arguments and returns
// its result converted to engine values
func (e *Env) Execute(c *Compiled, inputs api.Args) (any, error) {
	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if err := L.Load(bytes.NewReader(c.bytecode), "task", "b"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	for _, name := range c.params {
		pushArg(L, inputs, name)
	}

	if err := L.ProtectedCall(len(c.params), 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	result := luaToGo(L, -1)
	L.Pop(1)
	return result, nil
}

func wrapSource(source string, params []string) string {
	locals := make([]string, len(params))
	for i, name := range params {
		locals[i] = fmt.Sprintf(argLocalTemplate, name, i+1)
	}
	return strings.Join(append(locals, source), "\n")
}

func (e *Env) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(globalTableName)
	for _, name := range exclude {
		L.PushNil()
		L.SetField(globalTableIndex, name)
	}
	L.Pop(1)
}

func (e *Env) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *Env) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func pushArg(L *lua.State, inputs api.Args, name string) {
	if value, ok := inputs[name]; ok {
		goToLua(L, value)
		return
	}
	L.PushNil()
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushArray(L, v)
	case map[string]any:
		pushMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(arrayTableIndex)
	}
}

func pushMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, v := range m {
		L.PushString(k)
		goToLua(L, v)
		L.SetTable(mapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if !L.IsNumber(-2) {
			isArray = false
			L.Pop(1)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return convertArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		var key string
		if !L.IsString(-2) {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
			result[key] = luaToGo(L, -1)
			L.Pop(1)
			continue
		}
		key, _ = L.ToString(-2)
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}

	return result
}

func convertArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
