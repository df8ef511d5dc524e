package entity

import "strings"

// Kind tags which sort of declaration an Entity represents.
type Kind int

const (
	KindFunction Kind = iota + 1
	KindClass
	KindInterface
	KindEnum
	KindConstant
	KindMethod
	KindProperty
	KindEnumCase
)

var kindNames = map[Kind]string{
	KindFunction:  "function",
	KindClass:     "class",
	KindInterface: "interface",
	KindEnum:      "enum",
	KindConstant:  "constant",
	KindMethod:    "method",
	KindProperty:  "property",
	KindEnumCase:  "enum_case",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// TopLevel reports whether entities of this kind live directly in a catalog
// rather than inside an owning container.
func (k Kind) TopLevel() bool {
	switch k {
	case KindFunction, KindClass, KindInterface, KindEnum, KindConstant:
		return true
	}
	return false
}

// IsContainer reports whether entities of this kind own members.
func (k Kind) IsContainer() bool {
	return k == KindClass || k == KindInterface || k == KindEnum
}

// IsCallable reports whether entities of this kind have a parameter list.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMethod
}

// accepts reports whether a container of kind k may own a member of kind m.
func (k Kind) accepts(m Kind) bool {
	switch k {
	case KindClass:
		return m == KindMethod || m == KindProperty || m == KindConstant
	case KindInterface:
		return m == KindMethod || m == KindConstant
	case KindEnum:
		return m == KindMethod || m == KindConstant || m == KindEnumCase
	}
	return false
}

// TopLevelKinds lists the kinds that have their own catalog container, in
// enumeration order.
var TopLevelKinds = []Kind{KindFunction, KindClass, KindInterface, KindEnum, KindConstant}
