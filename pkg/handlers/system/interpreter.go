package system

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.starlark.net/starlark"

	"github.com/webcli/webcli/pkg/models"
)

// AgentFactory backs the interpreter's create_ai_agent builtin. It returns a
// value exposed to user code for the named provider.
type AgentFactory func(provider string) (starlark.Value, error)

// session is one user's persistent interpreter state. Bindings survive across
// actions; mu serializes evaluations for the same user.
type session struct {
	mu      sync.Mutex
	globals starlark.StringDict
}

// sessionRegistry maps user ids to interpreter sessions.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[int64]*session)}
}

// get returns the user's session, creating it on first use.
func (r *sessionRegistry) get(userID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = &session{globals: make(starlark.StringDict)}
		r.sessions[userID] = s
	}
	return s
}

func (r *sessionRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[int64]*session)
}

// pythonFlags are the recognized "python" verb flags.
type pythonFlags struct {
	load  string
	save  string
	print bool
}

// parsePythonArgs parses the space-split argument line. load and save are
// mutually exclusive.
func parsePythonArgs(args string) (*pythonFlags, error) {
	flags := &pythonFlags{}
	fields := strings.Fields(args)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--load":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("--load requires a file name")
			}
			i++
			flags.load = fields[i]
		case "--save":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("--save requires a file name")
			}
			i++
			flags.save = fields[i]
		case "--print":
			flags.print = true
		default:
			return nil, fmt.Errorf("unknown flag %q", fields[i])
		}
	}
	if flags.load != "" && flags.save != "" {
		return nil, fmt.Errorf("--load and --save are mutually exclusive")
	}
	return flags, nil
}

// parseConfigArgs parses "<get|set> <handler_name>".
func parseConfigArgs(args string) (verb, handlerName string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", false
	}
	if fields[0] != "get" && fields[0] != "set" {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// handlePython evaluates command_text in the user's persistent session.
func (h *Handler) handlePython(ctx context.Context, actionID int64, parsed *parsedRequest, user *models.User) bool {
	flags, err := parsePythonArgs(parsed.Args)
	if err != nil {
		return h.passthroughPlain(ctx, actionID, "wrong syntax", user)
	}

	source := parsed.CommandText
	switch {
	case flags.save != "":
		path, err := h.userFilePath(user, flags.save)
		if err != nil {
			return h.passthroughPlain(ctx, actionID, err.Error(), user)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			slog.Error("Failed to create user home directory", "action_id", actionID, "error", err)
			return false
		}
		if err := os.WriteFile(path, []byte(parsed.CommandText), 0o644); err != nil {
			slog.Error("Failed to save user file", "action_id", actionID, "error", err)
			return false
		}

	case flags.load != "":
		path, err := h.userFilePath(user, flags.load)
		if err != nil {
			return h.passthroughPlain(ctx, actionID, err.Error(), user)
		}
		loaded, err := os.ReadFile(path)
		if err != nil {
			// A missing file loads as empty source.
			loaded = nil
		}
		if flags.print {
			prefix := string(loaded)
			if !h.passthroughPlain(ctx, actionID, prefix, user) {
				return false
			}
		}
		if len(loaded) > 0 {
			source = string(loaded) + "\n" + parsed.CommandText
		}
	}

	output := h.evaluate(ctx, actionID, source, user)
	if output != "" {
		if err := h.service.AppendResponse(ctx, actionID, mimePlain, &output, nil, user); err != nil {
			slog.Error("Failed to append interpreter output", "action_id", actionID, "error", err)
			return false
		}
	}
	return true
}

// evaluate runs source in the user's session and returns the captured output,
// including any evaluation error text.
func (h *Handler) evaluate(ctx context.Context, actionID int64, source string, user *models.User) string {
	sess := h.sessions.get(user.ID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var output strings.Builder
	run := &interpreterRun{
		handler:  h,
		ctx:      ctx,
		actionID: actionID,
		user:     user,
	}

	predeclared := make(starlark.StringDict, len(sess.globals)+3)
	for name, value := range sess.globals {
		predeclared[name] = value
	}
	for name, builtin := range run.builtins() {
		predeclared[name] = builtin
	}

	thread := &starlark.Thread{
		Name: fmt.Sprintf("action-%d", actionID),
		Print: func(_ *starlark.Thread, msg string) {
			output.WriteString(msg)
			output.WriteString("\n")
		},
	}

	globals, err := starlark.ExecFile(thread, thread.Name, source, predeclared)
	if err != nil {
		output.WriteString(err.Error())
		output.WriteString("\n")
	}
	for name, value := range globals {
		sess.globals[name] = value
	}
	return output.String()
}

// userFilePath resolves name under the user's home directory, rejecting
// absolute paths and escapes.
func (h *Handler) userFilePath(user *models.User, name string) (string, error) {
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("filename cannot start with /")
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("filename cannot escape the home directory")
	}
	return filepath.Join(h.service.UsersHomeDir(), strconv.FormatInt(user.ID, 10), clean), nil
}

// interpreterRun carries per-evaluation context into the builtins.
type interpreterRun struct {
	handler  *Handler
	ctx      context.Context
	actionID int64
	user     *models.User
}

func (r *interpreterRun) builtins() starlark.StringDict {
	return starlark.StringDict{
		"cli_print":       starlark.NewBuiltin("cli_print", r.cliPrint),
		"cli_open":        starlark.NewBuiltin("cli_open", r.cliOpen),
		"create_ai_agent": starlark.NewBuiltin("create_ai_agent", r.createAIAgent),
	}
}

// cliPrint appends a response chunk. String and dict content become text;
// bytes become a binary chunk.
func (r *interpreterRun) cliPrint(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var content starlark.Value
	mime := mimeHTML
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "content", &content, "mime?", &mime); err != nil {
		return nil, err
	}

	var err error
	switch v := content.(type) {
	case starlark.String:
		text := string(v)
		err = r.handler.service.AppendResponse(r.ctx, r.actionID, mime, &text, nil, r.user)
	case starlark.Bytes:
		err = r.handler.service.AppendResponse(r.ctx, r.actionID, mime, nil, []byte(v), r.user)
	case *starlark.Dict:
		goValue, convErr := starlarkToGo(v)
		if convErr != nil {
			return nil, convErr
		}
		data, marshalErr := json.Marshal(goValue)
		if marshalErr != nil {
			return nil, marshalErr
		}
		text := string(data)
		err = r.handler.service.AppendResponse(r.ctx, r.actionID, mime, &text, nil, r.user)
	default:
		return nil, fmt.Errorf("%s: content must be a string, bytes, or dict, got %s", fn.Name(), content.Type())
	}
	if err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// cliOpen opens a file under the user's home directory.
func (r *interpreterRun) cliOpen(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	mode := "r"
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "mode?", &mode); err != nil {
		return nil, err
	}

	path, err := r.handler.userFilePath(r.user, name)
	if err != nil {
		return nil, err
	}

	var f *os.File
	switch mode {
	case "r", "rb":
		f, err = os.Open(path)
	case "w", "wb":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err = os.Create(path)
	case "a", "ab":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	default:
		return nil, fmt.Errorf("%s: unsupported mode %q", fn.Name(), mode)
	}
	if err != nil {
		return nil, err
	}
	return &fileValue{name: name, file: f, binary: strings.HasSuffix(mode, "b")}, nil
}

// createAIAgent delegates to the configured agent factory.
func (r *interpreterRun) createAIAgent(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var provider string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "provider", &provider); err != nil {
		return nil, err
	}
	if r.handler.AgentFactory == nil {
		return nil, fmt.Errorf("%s: no AI agent backend configured", fn.Name())
	}
	return r.handler.AgentFactory(provider)
}

// starlarkToGo converts a starlark value to plain Go for JSON encoding.
func starlarkToGo(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if n, ok := v.Int64(); ok {
			return n, nil
		}
		return v.String(), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case *starlark.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := starlarkToGo(v.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, key := range v.Keys() {
			keyStr, ok := key.(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings, got %s", key.Type())
			}
			value, _, err := v.Get(key)
			if err != nil {
				return nil, err
			}
			goValue, err := starlarkToGo(value)
			if err != nil {
				return nil, err
			}
			out[string(keyStr)] = goValue
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to JSON", v.Type())
	}
}
