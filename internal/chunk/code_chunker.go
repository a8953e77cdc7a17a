package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CodeChunkerOptions configures the code chunker's line-based fallback path,
// used only when a file's language has no parser.
type CodeChunkerOptions struct {
	MaxChunkTokens int // Maximum tokens per fallback chunk (default: DefaultMaxChunkTokens)
	OverlapTokens  int // Overlap between fallback chunks (default: DefaultOverlapTokens)
}

// CodeChunker implements AST-aware code chunking using tree-sitter.
// Chunk granularity is driven entirely by AST node kind: each matched
// symbol-defining node becomes exactly one chunk, regardless of size.
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
	options   CodeChunkerOptions
}

// NewCodeChunker creates a new code chunker with default options
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom options
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}

	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts,
	}
}

// Close releases chunker resources
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into semantic chunks
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	// Check if language is supported
	_, supported := c.registry.GetByName(file.Language)
	if !supported {
		// Fall back to line-based chunking
		return c.chunkByLines(file)
	}

	// Parse the file
	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		// Fall back to line-based chunking on parse error
		return c.chunkByLines(file)
	}

	// Extract context (package declaration, imports)
	fileContext := c.extractFileContext(tree, file.Content, file.Language)

	// Find symbol nodes (functions, structs, impls, classes, methods, ...)
	symbolNodes := c.findSymbolNodes(tree, file.Language)

	if len(symbolNodes) == 0 {
		return nil, nil
	}

	// One chunk per matched node; matched nodes are never further split.
	chunks := make([]*Chunk, 0, len(symbolNodes))
	now := time.Now()

	for _, node := range symbolNodes {
		chunks = append(chunks, c.createChunkFromNode(node, tree, file, fileContext, now))
	}

	return chunks, nil
}

// symbolNodeInfo holds a symbol node with its extracted symbol info
type symbolNodeInfo struct {
	node   *Node
	symbol *Symbol
}

// buildNodeKindMap builds the node-type to SymbolType table for a language,
// covering every kind §4.1 names (including struct/enum/trait/impl, which
// have no equivalent in the teacher's original Function/Class/Interface/
// TypeDef/Constant/Variable taxonomy).
func buildNodeKindMap(config *LanguageConfig) map[string]SymbolType {
	m := make(map[string]SymbolType)
	for _, t := range config.FunctionTypes {
		m[t] = SymbolTypeFunction
	}
	for _, t := range config.MethodTypes {
		m[t] = SymbolTypeMethod
	}
	for _, t := range config.ClassTypes {
		m[t] = SymbolTypeClass
	}
	for _, t := range config.InterfaceTypes {
		m[t] = SymbolTypeInterface
	}
	for _, t := range config.TypeDefTypes {
		m[t] = SymbolTypeType
	}
	for _, t := range config.ConstantTypes {
		m[t] = SymbolTypeConstant
	}
	for _, t := range config.VariableTypes {
		m[t] = SymbolTypeVariable
	}
	for _, t := range config.StructTypes {
		m[t] = SymbolTypeStruct
	}
	for _, t := range config.EnumTypes {
		m[t] = SymbolTypeEnum
	}
	for _, t := range config.TraitTypes {
		m[t] = SymbolTypeTrait
	}
	for _, t := range config.ImplTypes {
		m[t] = SymbolTypeImpl
	}
	return m
}

// findSymbolNodes walks the tree top-down, emitting one symbolNodeInfo per
// matched chunk-producing node. Nodes that don't match any kind are
// traversed through to their children. impl/class nodes are additionally
// recursed into to find nested methods, which are emitted as separate
// Method-typed chunks scoped to their containing impl/class, and are not
// matched again by the outer walk.
func (c *CodeChunker) findSymbolNodes(tree *Tree, language string) []*symbolNodeInfo {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return []*symbolNodeInfo{}
	}

	nodeKinds := buildNodeKindMap(config)
	out := make([]*symbolNodeInfo, 0)

	var walk func(n *Node)
	walk = func(n *Node) {
		// JS/TS arrow functions and function expressions assigned to a
		// const/let/var binding are not captured by lexical_declaration's
		// normal Constant/Variable classification; detect them first.
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if sym := c.extractor.extractSpecialSymbol(n, tree.Source, language); sym != nil {
				out = append(out, &symbolNodeInfo{node: n, symbol: sym})
				return
			}
		}

		symType, matched := nodeKinds[n.Type]
		if !matched {
			for _, child := range n.Children {
				walk(child)
			}
			return
		}

		sym := c.extractSymbol(n, tree, symType, language)
		if sym == nil {
			// Couldn't resolve a name; still look inside for nested members.
			for _, child := range n.Children {
				walk(child)
			}
			return
		}

		out = append(out, &symbolNodeInfo{node: n, symbol: sym})

		if symType == SymbolTypeClass || symType == SymbolTypeImpl {
			scopeKeyword := "class"
			// Class members are method_definition nodes in most languages
			// (TS/JS) but plain function_definition nodes in Python, where
			// there is no separate method node type.
			memberTypes := append(append([]string{}, config.MethodTypes...), config.FunctionTypes...)
			if symType == SymbolTypeImpl {
				scopeKeyword = "impl"
				memberTypes = config.FunctionTypes
			}
			scope := fmt.Sprintf("%s %s", scopeKeyword, sym.Name)
			for _, member := range collectNested(n, memberTypes) {
				memberSym := c.extractSymbol(member, tree, SymbolTypeMethod, language)
				if memberSym == nil {
					continue
				}
				memberSym.Scope = scope
				out = append(out, &symbolNodeInfo{node: member, symbol: memberSym})
			}
		}

		// Matched node handled (and, for class/impl, its members already
		// collected); do not descend further into its subtree.
	}

	walk(tree.Root)
	return out
}

// collectNested finds all descendant nodes whose type is in wantTypes,
// without descending into the subtree of an already-matched node.
func collectNested(n *Node, wantTypes []string) []*Node {
	if len(wantTypes) == 0 {
		return nil
	}
	want := make(map[string]bool, len(wantTypes))
	for _, t := range wantTypes {
		want[t] = true
	}

	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			if want[child.Type] {
				out = append(out, child)
				continue
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// extractSymbol extracts symbol info from a node
func (c *CodeChunker) extractSymbol(n *Node, tree *Tree, symType SymbolType, language string) *Symbol {
	config, _ := c.registry.GetByName(language)
	name := c.extractor.extractName(n, tree.Source, config, language)
	if name == "" {
		return nil
	}

	docComment := c.extractDocComment(n, tree.Source, language)
	signature := c.extractor.extractSignature(n, tree.Source, symType, language)

	return &Symbol{
		Name:       name,
		Type:       symType,
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		Signature:  signature,
		DocComment: docComment,
	}
}

// extractDocComment extracts doc comment for a node, looking for multi-line comments
func (c *CodeChunker) extractDocComment(n *Node, source []byte, language string) string {
	// Find the start of the current line
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	// Look for comment on preceding lines
	if lineStart <= 1 {
		return ""
	}

	// Collect comment lines working backwards
	var commentLines []string
	pos := lineStart - 1 // Start before the newline

	for pos > 0 {
		// Find start of previous line
		prevLineEnd := pos
		pos--
		for pos > 0 && source[pos] != '\n' {
			pos--
		}
		prevLineStart := pos
		if pos > 0 {
			prevLineStart++ // Skip the newline
		}

		prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))

		// Check for single-line comments
		switch language {
		case "go", "typescript", "tsx", "javascript", "jsx", "rust":
			if strings.HasPrefix(prevLine, "//") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "//")}, commentLines...)
				continue
			}
		case "python":
			if strings.HasPrefix(prevLine, "#") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "#")}, commentLines...)
				continue
			}
		}

		// Stop if we hit a non-comment line (unless empty)
		if prevLine != "" {
			break
		}
	}

	if len(commentLines) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(commentLines, "\n"))
}

// createChunkFromNode creates exactly one chunk from a matched symbol node.
// Matched nodes are never split, regardless of size.
func (c *CodeChunker) createChunkFromNode(info *symbolNodeInfo, tree *Tree, file *FileInput, fileContext string, now time.Time) *Chunk {
	node := info.node
	rawContent := string(tree.Source[node.StartByte:node.EndByte])

	// Include doc comment in raw content if it exists
	if info.symbol.DocComment != "" {
		rawContent = c.getRawContentWithDocComment(node, tree.Source, info.symbol.DocComment)
	}

	return c.createChunk(file, rawContent, fileContext, info.symbol, now)
}

// getRawContentWithDocComment gets raw content including doc comment
func (c *CodeChunker) getRawContentWithDocComment(n *Node, source []byte, docComment string) string {
	// Find start of doc comment (before the node)
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	// Count back through comment lines
	docLines := strings.Count(docComment, "\n") + 1
	for i := 0; i < docLines && lineStart > 0; i++ {
		lineStart--
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
	}

	return string(source[lineStart:n.EndByte])
}

// createChunk creates a single chunk from content
func (c *CodeChunker) createChunk(file *FileInput, rawContent, fileContext string, symbol *Symbol, now time.Time) *Chunk {
	return &Chunk{
		ID:          generateChunkID(file.Path, rawContent),
		FilePath:    file.Path,
		Content:     enrichContent(file.Path, symbol.Scope, fileContext, rawContent),
		RawContent:  rawContent,
		Context:     fileContext,
		ContentType: ContentTypeCode,
		Language:    file.Language,
		StartLine:   symbol.StartLine,
		EndLine:     symbol.EndLine,
		Symbols:     []*Symbol{symbol},
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// extractFileContext extracts package declaration and imports from a file
func (c *CodeChunker) extractFileContext(tree *Tree, source []byte, language string) string {
	var parts []string

	switch language {
	case "go":
		parts = c.extractGoContext(tree, source)
	case "typescript", "tsx":
		parts = c.extractTSContext(tree, source)
	case "javascript", "jsx":
		parts = c.extractJSContext(tree, source)
	case "python":
		parts = c.extractPythonContext(tree, source)
	case "rust":
		parts = c.extractRustContext(tree, source)
	}

	return strings.Join(parts, "\n\n")
}

func (c *CodeChunker) extractGoContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find package clause
	for _, node := range tree.Root.Children {
		if node.Type == "package_clause" {
			parts = append(parts, node.GetContent(source))
			break
		}
	}

	// Find import declarations
	for _, node := range tree.Root.Children {
		if node.Type == "import_declaration" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractTSContext(tree *Tree, source []byte) []string {
	return c.extractJSContext(tree, source) // Same for TS/TSX
}

func (c *CodeChunker) extractJSContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find import statements
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractPythonContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find import statements
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" || node.Type == "import_from_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractRustContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find use declarations (Rust's import statement)
	for _, node := range tree.Root.Children {
		if node.Type == "use_declaration" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

// chunkByLines is the fallback for unsupported languages
func (c *CodeChunker) chunkByLines(file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	// Line counts are derived from the token options at ~16 chars per line
	// and 4 chars per token: the defaults (512/64 tokens) give 128/16 lines.
	linesPerChunk := c.options.MaxChunkTokens * TokensPerChar / 16
	if linesPerChunk < 1 {
		linesPerChunk = 1
	}
	overlapLines := c.options.OverlapTokens * TokensPerChar / 16

	var chunks []*Chunk
	now := time.Now()

	for i := 0; i < len(lines); {
		end := i + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		chunkContent := strings.Join(lines[i:end], "\n")
		startLine := i + 1 // 1-indexed
		endLine := end     // Inclusive

		chunk := &Chunk{
			ID:          generateChunkID(file.Path, chunkContent),
			FilePath:    file.Path,
			Content:     chunkContent,
			RawContent:  chunkContent,
			Context:     "",
			ContentType: ContentTypeText,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     endLine,
			Symbols:     nil,
			Metadata:    make(map[string]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		chunks = append(chunks, chunk)

		// Move forward with overlap
		i = end - overlapLines
		if i <= 0 || end >= len(lines) {
			break
		}
	}

	return chunks, nil
}

// generateChunkID generates a content-addressable chunk ID from file path and content.
// The ID is derived from filePath and content hash, making it stable across line number
// shifts while preserving file context. This is critical for checkpoint/resume to work
// correctly when files are modified between indexing sessions.
//
// Properties:
//   - Same content in same file = same ID (stable across line shifts)
//   - Different content in same file = different ID (triggers re-embedding)
//   - Same content in different files = different IDs (preserves file context)
func generateChunkID(filePath string, content string) string {
	// Hash the content first
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	// Combine with file path for uniqueness per file
	input := fmt.Sprintf("%s:%s", filePath, contentHashStr)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// estimateTokens estimates the number of tokens in content
func estimateTokens(content string) int {
	return len(content) / TokensPerChar
}

// enrichContent builds the embedding-time enriched form of a chunk:
// "# File: <path>\n[# Scope: <scope>\n]\n<content>", optionally preceded
// by file-level context (package/imports). content_hash is always computed
// from the raw content alone, never this enriched form.
func enrichContent(filePath, scope, fileContext, rawContent string) string {
	marker := fmt.Sprintf("# File: %s", filePath)
	if scope != "" {
		marker += fmt.Sprintf("\n# Scope: %s", scope)
	}

	body := rawContent
	if fileContext != "" {
		body = fileContext + "\n\n" + rawContent
	}

	return marker + "\n\n" + body
}
