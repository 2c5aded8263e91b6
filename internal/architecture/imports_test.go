package architecture_test

import (
	"bufio"
	"errors"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// rules lists, per directory under the module root, the internal packages it
// must not import. Lower layers never reach into the ones that wire them.
var rules = []struct {
	dir    string
	forbid []string
}{
	{"internal/pkg/", []string{"platform", "domain", "data", "services", "jobs", "realtime", "http", "temporalx", "app"}},
	{"internal/domain/", []string{"platform", "data", "services", "jobs", "realtime", "http", "temporalx", "app"}},
	{"internal/platform/", []string{"data", "services", "jobs", "realtime", "http", "temporalx", "app"}},
	{"internal/data/", []string{"services", "jobs", "realtime", "http", "temporalx", "app"}},
	{"internal/realtime/", []string{"data", "services", "jobs", "http", "temporalx", "app"}},
	{"internal/observability/", []string{"services", "jobs", "realtime", "http", "temporalx", "app"}},
	{"internal/services/", []string{"jobs", "http", "temporalx", "app"}},
	{"internal/jobs/", []string{"http", "app"}},
	{"internal/http/", []string{"jobs", "temporalx", "app"}},
}

func TestImportBoundaries(t *testing.T) {
	root, module := moduleRoot(t)
	fset := token.NewFileSet()

	err := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		forbid := forbiddenFor(rel)
		if len(forbid) == 0 {
			return nil
		}

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			imp, _ := strconv.Unquote(spec.Path.Value)
			pkg, ok := strings.CutPrefix(imp, module+"/internal/")
			if !ok {
				continue
			}
			for _, bad := range forbid {
				if pkg == bad || strings.HasPrefix(pkg, bad+"/") {
					t.Errorf("%s imports %s (internal/%s is off limits)", rel, imp, bad)
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}
}

func forbiddenFor(rel string) []string {
	for _, r := range rules {
		if strings.HasPrefix(rel, r.dir) {
			return r.forbid
		}
	}
	return nil
}

// moduleRoot walks up from the test's directory to go.mod and reads the module path.
func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		f, err := os.Open(filepath.Join(dir, "go.mod"))
		if err == nil {
			defer f.Close()
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				if mod, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "module "); ok {
					return dir, strings.TrimSpace(mod)
				}
			}
			t.Fatalf("no module line in %s/go.mod", dir)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("open go.mod: %v", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found")
		}
		dir = parent
	}
}
