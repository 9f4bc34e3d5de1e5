package docs

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
)

// parseFile statically extracts the declarations of one Go source file.
// The file is parsed, never type-checked, imported or executed.
func parseFile(absPath, relPath string) (Page, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, absPath, nil, parser.ParseComments)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse %s: %w", relPath, err)
	}

	mod := modulePath(relPath)
	page := Page{
		Title:    mod,
		Source:   relPath,
		FileName: outputName(relPath),
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			page.Units = append(page.Units, funcUnit(fset, mod, d))
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				page.Units = append(page.Units, typeUnit(fset, mod, d, ts))
			}
		}
	}

	return page, nil
}

func funcUnit(fset *token.FileSet, mod string, d *ast.FuncDecl) Unit {
	u := Unit{
		Kind: "func",
		Doc:  docText(d.Doc),
		Line: fset.Position(d.Pos()).Line,
	}

	qualifier := mod
	if d.Recv != nil && len(d.Recv.List) > 0 {
		u.Kind = "method"
		qualifier = mod + "." + receiverName(d.Recv.List[0].Type)
	}
	u.Qualified = qualifier + "." + d.Name.Name

	if d.Type.Params != nil {
		for _, field := range d.Type.Params.List {
			typ := types.ExprString(field.Type)
			if len(field.Names) == 0 {
				u.Params = append(u.Params, Param{Name: "_", Type: typ})
				continue
			}
			for _, name := range field.Names {
				u.Params = append(u.Params, Param{Name: name.Name, Type: typ})
			}
		}
	}

	return u
}

func typeUnit(fset *token.FileSet, mod string, d *ast.GenDecl, ts *ast.TypeSpec) Unit {
	// A TypeSpec carries its own doc when declared inside a grouped block;
	// otherwise the comment hangs off the GenDecl.
	doc := docText(ts.Doc)
	if doc == "" {
		doc = docText(d.Doc)
	}
	return Unit{
		Qualified: mod + "." + ts.Name.Name,
		Kind:      "type",
		Doc:       doc,
		Line:      fset.Position(ts.Pos()).Line,
	}
}

// receiverName extracts the base type name from a method receiver
// expression, unwrapping pointers and generic instantiations.
func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	default:
		return strings.TrimPrefix(types.ExprString(expr), "*")
	}
}

func docText(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return strings.TrimSpace(cg.Text())
}
