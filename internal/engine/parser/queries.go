package parser

// QueryKind is a bit set of the structural queries a node kind answers.
type QueryKind uint8

const (
	QueryImport QueryKind = 1 << iota
	QueryClass
	QueryFunction
	QueryCall
	QueryParameters
)

// QuerySet maps node kinds to the queries they satisfy so one walk can
// evaluate every query per node.
type QuerySet struct {
	byKind map[string]QueryKind
}

func compileQueries(s *LanguageSpec) QuerySet {
	q := QuerySet{byKind: make(map[string]QueryKind)}
	add := func(kind string, k QueryKind) {
		q.byKind[kind] |= k
	}
	for _, kind := range s.ImportKinds {
		add(kind, QueryImport)
	}
	for kind := range s.ClassKinds {
		add(kind, QueryClass)
	}
	for kind := range s.ImplKinds {
		add(kind, QueryClass)
	}
	for _, kind := range s.FunctionKinds {
		add(kind, QueryFunction)
	}
	for kind := range s.AssignmentKinds {
		add(kind, QueryFunction)
	}
	for kind := range s.CallKinds {
		add(kind, QueryCall)
	}
	for kind := range s.ConstructorKinds {
		add(kind, QueryCall)
	}
	for _, kind := range s.ParameterKinds {
		add(kind, QueryParameters)
	}
	return q
}

// Match returns the queries answered by kind.
func (q QuerySet) Match(kind string) QueryKind {
	return q.byKind[kind]
}

func (k QueryKind) Has(other QueryKind) bool {
	return k&other != 0
}
