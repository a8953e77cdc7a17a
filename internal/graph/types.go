// Package graph implements the in-memory knowledge graph of symbols, files,
// and the typed edges between them (definitions, calls, references, and the
// rest of the closed edge-kind set).
package graph

import "fmt"

// SymbolKind is the closed set of symbol kinds the graph can represent.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolStruct    SymbolKind = "struct"
	SymbolEnum      SymbolKind = "enum"
	SymbolTrait     SymbolKind = "trait"
	SymbolInterface SymbolKind = "interface"
	SymbolClass     SymbolKind = "class"
	SymbolImpl      SymbolKind = "impl"
	SymbolModule    SymbolKind = "module"
	SymbolConst     SymbolKind = "const"
	SymbolTypeAlias SymbolKind = "type_alias"
	SymbolVariable  SymbolKind = "variable"
)

// EdgeKind is the closed set of relationships the graph tracks between nodes.
type EdgeKind string

const (
	EdgeDefines    EdgeKind = "Defines"
	EdgeReferences EdgeKind = "References"
	EdgeCalls      EdgeKind = "Calls"
	EdgeInherits   EdgeKind = "Inherits"
	EdgeImplements EdgeKind = "Implements"
	EdgeContains   EdgeKind = "Contains"
	EdgeBelongsTo  EdgeKind = "BelongsTo"
	EdgeImports    EdgeKind = "Imports"
	EdgeUses       EdgeKind = "Uses"
	EdgeOverrides  EdgeKind = "Overrides"
	EdgeAliasOf    EdgeKind = "AliasOf"
	EdgeTypeParam  EdgeKind = "TypeParam"
)

// SymbolNode is one code symbol: a function, type, constant, etc.
type SymbolNode struct {
	ID            string // deterministic: "<file_id>::<name>@<line>"
	Name          string
	Kind          SymbolKind
	FileID        string
	LineStart     int
	LineEnd       int
	ColumnStart   int
	ColumnEnd     int
	Signature     string
	Documentation string
	ModulePath    string
	ParentID      string // enclosing symbol id, empty for top-level
	TypeInfo      string
	GenericParams []string
	Visibility    string
	Deprecated    bool
	Metadata      map[string]string
}

// SymbolID computes the deterministic id for a symbol defined at fileID:line.
func SymbolID(fileID, name string, line int) string {
	return fmt.Sprintf("%s::%s@%d", fileID, name, line)
}

// FileNode is one source file tracked by the graph.
type FileNode struct {
	ID          string // path, used as the node id
	Path        string
	Language    string
	LOC         int
	SymbolCount int
	IsTest      bool
	ModifiedAt  int64 // unix seconds, 0 if unknown
}

// Edge is a directed, typed relationship between two node ids.
type Edge struct {
	Source       string
	Target       string
	Kind         EdgeKind
	LocationFile string
	LocationLine int
}

func edgeKey(e Edge) string {
	return e.Source + "\x00" + e.Target + "\x00" + string(e.Kind) + "\x00" + e.LocationFile
}
