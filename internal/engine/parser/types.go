package parser

// Position is a 1-based source span.
type Position struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	EndLine   int `json:"endLine"`
	EndColumn int `json:"endColumn"`
}

// AnalysisNode is a normalized fragment of the syntax tree for one recorded
// construct (function, type, call or import). Children hold the ids of the
// constructs nested inside it.
type AnalysisNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	Position Position `json:"position"`
	Children []string `json:"children,omitempty"`
}

type SegmentKind string

const (
	SegmentMember   SegmentKind = "MEMBER"
	SegmentFunction SegmentKind = "FUNCTION"
)

// ChainSegment is one step of a decomposed call/member-access expression.
type ChainSegment struct {
	Kind SegmentKind `json:"kind"`
	Name string      `json:"name"`
}

// CallRecord is one call site.
type CallRecord struct {
	NodeID      string         `json:"nodeId"`
	Name        string         `json:"name"`
	Receiver    string         `json:"receiver,omitempty"`
	Chain       []ChainSegment `json:"chain,omitempty"`
	SelfCall    bool           `json:"selfCall,omitempty"`
	Constructor bool           `json:"constructor,omitempty"`
	ClassName   string         `json:"className,omitempty"`
	Line        int            `json:"line"`
}

type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Import is a raw import collected from source, before resolution.
type Import struct {
	Raw    string   `json:"raw"`
	Names  []string `json:"names,omitempty"`
	Alias  string   `json:"alias,omitempty"`
	Line   int      `json:"line"`
	NodeID string   `json:"nodeId,omitempty"`
}

// ImportLink is the resolved form of an Import.
type ImportLink struct {
	Original   string `json:"originalPath"`
	Normalized string `json:"normalizedPath"`
	Relative   string `json:"relativePath,omitempty"`
	External   bool   `json:"isExternal"`
	UsedAlias  bool   `json:"usedAlias,omitempty"`
	Resolved   bool   `json:"resolved"`
}

type RelationKind string

const (
	RelationImplements RelationKind = "implements"
	RelationExtends    RelationKind = "extends"
)

// TypeRelation is a hierarchy fact declared away from the type itself, such
// as Rust's `impl Trait for Type`.
type TypeRelation struct {
	TypeName string       `json:"typeName"`
	Kind     RelationKind `json:"kind"`
	Target   string       `json:"target"`
}

// FileAnalysis is the per-file record stored in the code graph.
type FileAnalysis struct {
	Path            string                   `json:"path"`
	RelativePath    string                   `json:"relativePath"`
	Language        Language                 `json:"language"`
	Defines         []string                 `json:"defines"`
	Calls           []CallRecord             `json:"calls"`
	Imports         []string                 `json:"imports"`
	RawImports      []Import                 `json:"rawImports,omitempty"`
	ResolvedImports []ImportLink             `json:"resolvedImports,omitempty"`
	ClassNames      []string                 `json:"classNames"`
	Nodes           map[string]*AnalysisNode `json:"nodes"`
	Relations       []TypeRelation           `json:"relations,omitempty"`
	HasErrors       bool                     `json:"hasErrors,omitempty"`
	Skipped         string                   `json:"skipped,omitempty"`
}

// NewFileAnalysis returns an empty analysis for path.
func NewFileAnalysis(path, relPath string, lang Language) *FileAnalysis {
	return &FileAnalysis{
		Path:         path,
		RelativePath: relPath,
		Language:     lang,
		Defines:      []string{},
		Calls:        []CallRecord{},
		Imports:      []string{},
		ClassNames:   []string{},
		Nodes:        map[string]*AnalysisNode{},
	}
}

type FunctionAnalysis struct {
	NodeID        string       `json:"nodeId"`
	File          string       `json:"file"`
	Name          string       `json:"name"`
	Params        []Param      `json:"params"`
	Lines         int          `json:"lines"`
	ReturnType    string       `json:"returnType,omitempty"`
	Calls         []CallRecord `json:"calls"`
	ClassName     string       `json:"className,omitempty"`
	StartLine     int          `json:"startLine"`
	EndLine       int          `json:"endLine"`
	FunctionHash  string       `json:"functionHash"`
	SignatureHash string       `json:"signatureHash"`
	FullText      string       `json:"fullText"`
	Language      Language     `json:"language"`
}

// FullName qualifies methods with their owning type.
func (f *FunctionAnalysis) FullName() string {
	if f.ClassName == "" {
		return f.Name
	}
	return f.ClassName + "." + f.Name
}

type TypeKind string

const (
	TypeClass     TypeKind = "class"
	TypeInterface TypeKind = "interface"
	TypeEnum      TypeKind = "enum"
)

type TypeAnalysis struct {
	NodeID        string   `json:"nodeId"`
	Name          string   `json:"name"`
	File          string   `json:"file"`
	Kind          TypeKind `json:"kind"`
	Fields        []Field  `json:"fields"`
	Extends       []string `json:"extends"`
	ExtendedBy    []string `json:"extendedBy"`
	Implements    []string `json:"implements"`
	ImplementedBy []string `json:"implementedBy"`
	Scope         string   `json:"scope"`
	StartLine     int      `json:"startLine"`
	EndLine       int      `json:"endLine"`
	FullText      string   `json:"fullText"`
	Language      Language `json:"language"`
}

// FileResult is everything one parse produces.
type FileResult struct {
	Analysis  *FileAnalysis
	Functions []*FunctionAnalysis
	Types     []*TypeAnalysis
}
