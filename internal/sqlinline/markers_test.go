package sqlinline

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var markerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

// Every query constant must open with a unique --sql <uuid> marker; the SQL
// runner refuses queries without one.
func TestQueriesCarryUniqueMarkers(t *testing.T) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, ".", func(fi fs.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, 0)
	if err != nil {
		t.Fatalf("parse package: %v", err)
	}

	seen := map[string]string{}
	count := 0
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			ast.Inspect(file, func(n ast.Node) bool {
				vs, ok := n.(*ast.ValueSpec)
				if !ok {
					return true
				}
				for i, name := range vs.Names {
					if !strings.HasPrefix(name.Name, "Q") || i >= len(vs.Values) {
						continue
					}
					lit, ok := vs.Values[i].(*ast.BasicLit)
					if !ok || lit.Kind != token.STRING {
						continue
					}
					raw, err := strconv.Unquote(lit.Value)
					if err != nil {
						t.Fatalf("%s: unquote: %v", name.Name, err)
					}
					count++
					m := markerPattern.FindStringSubmatch(firstLine(raw))
					if m == nil {
						t.Errorf("%s (%s): missing or invalid --sql <uuid> marker", name.Name, fset.Position(lit.Pos()))
						continue
					}
					if prev, dup := seen[m[1]]; dup {
						t.Errorf("%s reuses the marker of %s", name.Name, prev)
					}
					seen[m[1]] = name.Name
				}
				return true
			})
		}
	}
	if count == 0 {
		t.Fatal("no query constants found")
	}
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
