package system

import (
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
)

// fileValue is the interpreter value returned by cli_open. It exposes read,
// write, and close methods over a file scoped to the user's home directory.
type fileValue struct {
	name   string
	file   *os.File
	binary bool
	closed bool
}

var _ starlark.HasAttrs = (*fileValue)(nil)

func (f *fileValue) String() string        { return fmt.Sprintf("<file %q>", f.name) }
func (f *fileValue) Type() string          { return "file" }
func (f *fileValue) Freeze()               {}
func (f *fileValue) Truth() starlark.Bool  { return starlark.True }
func (f *fileValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: file") }

func (f *fileValue) AttrNames() []string {
	return []string{"close", "read", "write"}
}

func (f *fileValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "read":
		return starlark.NewBuiltin("read", f.read).BindReceiver(f), nil
	case "write":
		return starlark.NewBuiltin("write", f.write).BindReceiver(f), nil
	case "close":
		return starlark.NewBuiltin("close", f.close).BindReceiver(f), nil
	}
	return nil, nil
}

func (f *fileValue) read(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if f.closed {
		return nil, fmt.Errorf("read from closed file %q", f.name)
	}
	data, err := io.ReadAll(f.file)
	if err != nil {
		return nil, err
	}
	if f.binary {
		return starlark.Bytes(data), nil
	}
	return starlark.String(data), nil
}

func (f *fileValue) write(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var content starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "content", &content); err != nil {
		return nil, err
	}
	if f.closed {
		return nil, fmt.Errorf("write to closed file %q", f.name)
	}

	var data []byte
	switch v := content.(type) {
	case starlark.String:
		data = []byte(v)
	case starlark.Bytes:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("%s: content must be a string or bytes, got %s", fn.Name(), content.Type())
	}
	n, err := f.file.Write(data)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(n), nil
}

func (f *fileValue) close(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if !f.closed {
		f.closed = true
		if err := f.file.Close(); err != nil {
			return nil, err
		}
	}
	return starlark.None, nil
}
