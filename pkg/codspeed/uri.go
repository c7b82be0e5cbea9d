package codspeed

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// URI joins a source file, a module path and a benchmark name into the
// benchmark identity reported to the backend.
func URI(file, module, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{file, module, name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "::")
}

// AppendArg suffixes a parameterized benchmark URI with its argument.
func AppendArg(uri, arg string) string {
	return uri + "[" + arg + "]"
}

// FormatFunctionPath turns a runtime function name such as
// "example.com/m/benches.(*Suite).Fib" into "benches::(*Suite)::Fib".
func FormatFunctionPath(name string) string {
	name = strings.ReplaceAll(name, " :: ", "::")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	var sb strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == '.' && depth == 0:
			sb.WriteString("::")
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FuncURI derives the URI of fn from its source file and qualified name.
func FuncURI(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	file, _ := f.FileLine(f.Entry())
	return URI(GitRelativePath(file), "", FormatFunctionPath(f.Name()))
}

// GitRelativePath resolves path relative to the enclosing git repository.
// Without a repository the resolved absolute path is returned, and a path
// that cannot be resolved is returned unchanged.
func GitRelativePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return path
	}
	for dir := resolved; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			rel, err := filepath.Rel(dir, resolved)
			if err != nil {
				return resolved
			}
			return rel
		}
		if parent := filepath.Dir(dir); parent == dir {
			return resolved
		}
	}
}
