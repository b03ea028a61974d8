// Package arena implements the element arena: the CodeDOM's single source
// of truth. Every element — literal, declaration, type, operator, control
// flow node, or scope block — is allocated here under a stable, monotone id
// and indexed both by id and by kind for the emitter's deterministic walks.
package arena

// ElementKind is the closed set of CodeDOM node variants. The tag doubles as
// the payload discriminant: no runtime downcasts are needed since the Kind
// already proves the shape of Payload.
type ElementKind int

const (
	KindInvalid ElementKind = iota

	// Literals
	KindNil
	KindBool
	KindInt
	KindFloat
	KindString
	KindCharacter
	KindUninitialized
	KindValueSink
	KindTypeLiteral

	// Declarations
	KindIdentifier
	KindDeclaration
	KindField
	KindNamespace
	KindModule
	KindImport

	// Types
	KindNumericType
	KindBoolType
	KindRuneType
	KindPointerType
	KindArrayType
	KindTupleType
	KindStructType
	KindUnionType
	KindEnumType
	KindProcedureType
	KindNamespaceType
	KindModuleType
	KindGenericType
	KindFamilyType
	KindUnknownType

	// Operators
	KindUnary
	KindBinary
	KindSpread
	KindCast
	KindTransmute
	KindSubscript
	KindMemberAccess

	// Control flow
	KindIf
	KindWhile
	KindFor
	KindSwitch
	KindCase
	KindFallthrough
	KindBreak
	KindContinue
	KindReturn
	KindDefer
	KindWith
	KindYield
	KindBlock
	KindStatement
	KindLabel
	KindLabelReference

	// Calls
	KindArgumentList
	KindArgumentPair
	KindProcedureCall
	KindProcedureInstance
	KindIntrinsic

	// Program-structural
	KindProgram
	KindExpression
	KindInitializer
	KindAttribute
	KindDirective
	KindComment
	KindRawBlock
	KindAssemblyLabel
	KindAssemblyLiteralLabel
	KindSymbol
	KindTypeReference
	KindIdentifierReference
	KindModuleReference

	kindSentinel
)

var kindNames = map[ElementKind]string{
	KindInvalid:              "invalid",
	KindNil:                  "nil",
	KindBool:                 "bool",
	KindInt:                  "int",
	KindFloat:                "float",
	KindString:               "string",
	KindCharacter:            "character",
	KindUninitialized:        "uninitialized",
	KindValueSink:            "value_sink",
	KindTypeLiteral:          "type_literal",
	KindIdentifier:           "identifier",
	KindDeclaration:          "declaration",
	KindField:                "field",
	KindNamespace:            "namespace",
	KindModule:               "module",
	KindImport:               "import",
	KindNumericType:          "numeric_type",
	KindBoolType:             "bool_type",
	KindRuneType:             "rune_type",
	KindPointerType:          "pointer_type",
	KindArrayType:            "array_type",
	KindTupleType:            "tuple_type",
	KindStructType:           "struct_type",
	KindUnionType:            "union_type",
	KindEnumType:             "enum_type",
	KindProcedureType:        "procedure_type",
	KindNamespaceType:        "namespace_type",
	KindModuleType:           "module_type",
	KindGenericType:          "generic_type",
	KindFamilyType:           "family_type",
	KindUnknownType:          "unknown_type",
	KindUnary:                "unary",
	KindBinary:               "binary",
	KindSpread:               "spread",
	KindCast:                 "cast",
	KindTransmute:            "transmute",
	KindSubscript:            "subscript",
	KindMemberAccess:         "member_access",
	KindIf:                   "if",
	KindWhile:                "while",
	KindFor:                  "for",
	KindSwitch:               "switch",
	KindCase:                 "case",
	KindFallthrough:          "fallthrough",
	KindBreak:                "break",
	KindContinue:             "continue",
	KindReturn:               "return",
	KindDefer:                "defer",
	KindWith:                 "with",
	KindYield:                "yield",
	KindBlock:                "block",
	KindStatement:            "statement",
	KindLabel:                "label",
	KindLabelReference:       "label_reference",
	KindArgumentList:         "argument_list",
	KindArgumentPair:         "argument_pair",
	KindProcedureCall:        "procedure_call",
	KindProcedureInstance:    "procedure_instance",
	KindIntrinsic:            "intrinsic",
	KindProgram:              "program",
	KindExpression:           "expression",
	KindInitializer:          "initializer",
	KindAttribute:            "attribute",
	KindDirective:            "directive",
	KindComment:              "comment",
	KindRawBlock:             "raw_block",
	KindAssemblyLabel:        "assembly_label",
	KindAssemblyLiteralLabel: "assembly_literal_label",
	KindSymbol:               "symbol",
	KindTypeReference:        "type_reference",
	KindIdentifierReference:  "identifier_reference",
	KindModuleReference:      "module_reference",
}

func (k ElementKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown_kind"
}

// IsType reports whether kind is one of the type-system variants.
func (k ElementKind) IsType() bool {
	return k >= KindNumericType && k <= KindUnknownType
}

// IsScope reports whether an element of this kind owns a Block payload
// (i.e. can be a lexical scope).
func (k ElementKind) IsScope() bool {
	switch k {
	case KindBlock, KindModule, KindNamespace, KindProgram, KindProcedureInstance,
		KindStructType, KindUnionType, KindEnumType, KindProcedureType:
		return true
	default:
		return false
	}
}

// IsFoldable reports whether kind participates in constant folding (§4.4).
func (k ElementKind) IsFoldable() bool {
	switch k {
	case KindIntrinsic, KindIdentifierReference, KindUnary, KindBinary, KindLabelReference:
		return true
	default:
		return false
	}
}

// IsSingletonKind reports whether elements of this kind are typically
// process-wide singletons (nil/uninitialized/value_sink literals); it
// returns false for KindBool. Individual elements still carry their own
// IsSingleton flag, and that flag, not this kind check, is what
// Arena.Remove consults.
func (k ElementKind) IsSingletonKind() bool {
	switch k {
	case KindNil, KindUninitialized, KindValueSink:
		return true
	default:
		return false
	}
}
