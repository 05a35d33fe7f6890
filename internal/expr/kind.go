package expr

// Kind identifies a node variant. The set is closed; kinds sort in
// declaration order.
type Kind int

const (
	KindConstant Kind = iota + 1
	KindCoordinate
	KindField
	KindUnknown
	KindTest
	KindSum
	KindProduct
)

var kindNames = map[Kind]string{
	KindConstant:   "constant",
	KindCoordinate: "coordinate",
	KindField:      "field",
	KindUnknown:    "unknown",
	KindTest:       "test",
	KindSum:        "sum",
	KindProduct:    "product",
}

// String returns the lower-case kind name used in canonical descriptions.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsBinary reports whether nodes of this kind have exactly two children.
func (k Kind) IsBinary() bool {
	return k == KindSum || k == KindProduct
}

// IsDiffVariable reports whether nodes of this kind are differentiation
// variables (unknown or test functions).
func (k Kind) IsDiffVariable() bool {
	return k == KindUnknown || k == KindTest
}

// Kinds returns every valid kind in order.
func Kinds() []Kind {
	return []Kind{KindConstant, KindCoordinate, KindField, KindUnknown, KindTest, KindSum, KindProduct}
}
