package ast

import "math/big"

// Access is a capability tag: read-only, write-only, or read-write.
type Access int

const (
	// AccessUnset means no access was specified; a default applies later.
	AccessUnset Access = iota
	AccessReadOnly
	AccessWriteOnly
	AccessReadWrite
)

// ByteOrder is the mapping from logical byte index to storage-byte index.
type ByteOrder int

const (
	ByteOrderUnset ByteOrder = iota
	ByteOrderLE
	ByteOrderBE
)

// BitOrder is the mapping from logical bit index within a byte to a
// physical bit position.
type BitOrder int

const (
	BitOrderUnset BitOrder = iota
	BitOrderLSB0
	BitOrderMSB0
)

// BaseType is a field's raw numeric kind.
type BaseType int

const (
	BaseTypeUnset BaseType = iota
	BaseTypeBool
	BaseTypeUint
	BaseTypeInt
)

// AddressType names one of the eight integer types an address may be
// declared with.
type AddressType string

const (
	AddressU8  AddressType = "u8"
	AddressU16 AddressType = "u16"
	AddressU32 AddressType = "u32"
	AddressU64 AddressType = "u64"
	AddressI8  AddressType = "i8"
	AddressI16 AddressType = "i16"
	AddressI32 AddressType = "i32"
	AddressI64 AddressType = "i64"
)

// ObjectKind discriminates the tagged-variant Object.
type ObjectKind int

const (
	KindBlock ObjectKind = iota
	KindRegister
	KindCommand
	KindBuffer
	KindRef
)

func (k ObjectKind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindRegister:
		return "register"
	case KindCommand:
		return "command"
	case KindBuffer:
		return "buffer"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// ParseAccess maps one of the access words reserved in the DSL (spec.md
// §6) to an Access value. It is shared by the DSL parser and the
// manifest deserializer so the two input surfaces agree on spelling.
func ParseAccess(word string) (Access, bool) {
	switch word {
	case "RW", "ReadWrite", "read_write":
		return AccessReadWrite, true
	case "RO", "ReadOnly", "read_only":
		return AccessReadOnly, true
	case "WO", "WriteOnly", "write_only":
		return AccessWriteOnly, true
	default:
		return AccessUnset, false
	}
}

// ParseByteOrder maps "LE"/"BE" to a ByteOrder value.
func ParseByteOrder(word string) (ByteOrder, bool) {
	switch word {
	case "LE":
		return ByteOrderLE, true
	case "BE":
		return ByteOrderBE, true
	default:
		return ByteOrderUnset, false
	}
}

// ParseBitOrder maps "LSB0"/"MSB0" to a BitOrder value.
func ParseBitOrder(word string) (BitOrder, bool) {
	switch word {
	case "LSB0":
		return BitOrderLSB0, true
	case "MSB0":
		return BitOrderMSB0, true
	default:
		return BitOrderUnset, false
	}
}

// ParseBaseType maps "bool"/"uint"/"int" to a BaseType value.
func ParseBaseType(word string) (BaseType, bool) {
	switch word {
	case "bool":
		return BaseTypeBool, true
	case "uint":
		return BaseTypeUint, true
	case "int":
		return BaseTypeInt, true
	default:
		return BaseTypeUnset, false
	}
}

// ParseAddressType validates that word names one of the eight address
// types.
func ParseAddressType(word string) (AddressType, bool) {
	switch AddressType(word) {
	case AddressU8, AddressU16, AddressU32, AddressU64, AddressI8, AddressI16, AddressI32, AddressI64:
		return AddressType(word), true
	default:
		return "", false
	}
}

// Ident is a user-spelled identifier with its defining span.
type Ident struct {
	Name string
	Span Span
}

// GlobalConfigItem is one "type Name = Value" entry from a config block,
// in source order.
type GlobalConfigItem struct {
	Name  string
	Value ConfigValue
	Span  Span
}

// ConfigValue is the right-hand side of a config item: either a bare
// identifier/word (an enum-like setting such as LE, LSB0, u16) or a
// quoted string (used for NameWordBoundaries and free-form values).
type ConfigValue struct {
	Word   string
	String *string
}

// GlobalConfig holds device-wide defaults, present at most once per
// Device.
type GlobalConfig struct {
	Items []GlobalConfigItem
	Span  Span
}

// Lookup returns the last item with the given name, mirroring "last
// write wins" semantics for a key repeated in a config block.
func (c *GlobalConfig) Lookup(name string) (GlobalConfigItem, bool) {
	if c == nil {
		return GlobalConfigItem{}, false
	}

	var (
		found GlobalConfigItem
		ok    bool
	)

	for _, item := range c.Items {
		if item.Name == name {
			found = item
			ok = true
		}
	}

	return found, ok
}

// Repeat is the {count, stride} multiplier carried on a repeated object.
type Repeat struct {
	Count  *big.Int
	Stride *big.Int
	Span   Span
}

// ResetValue is the surface form of a register's reset value: either a
// single integer (interpreted with the register's effective ordering
// during lowering) or an explicit byte sequence.
type ResetValue struct {
	Integer *big.Int
	Bytes   []byte
	Span    Span
}

// EnumVariantValueKind discriminates the four ways an inline enum variant
// may specify its integer value.
type EnumVariantValueKind int

const (
	EnumVariantAuto EnumVariantValueKind = iota
	EnumVariantExplicit
	EnumVariantDefault
	EnumVariantCatchAll
)

// EnumVariant is one member of an inline enum definition.
type EnumVariant struct {
	Name     Ident
	Doc      []string
	Attr     *string
	Kind     EnumVariantValueKind
	Explicit *big.Int
	Span     Span
}

// InlineEnum is a `conversion`/`try_conversion` map value that defines an
// enum inline rather than referencing an external type.
type InlineEnum struct {
	Name     string
	Variants []EnumVariant
	Span     Span
}

// Conversion is the surface form of a field's `conversion`/`try_conversion`
// key: either a reference to an external type path, or an inline enum
// definition. Fallible records whether `try_conversion` (rather than
// `conversion`) was used.
type Conversion struct {
	Fallible   bool
	TypePath   string
	InlineEnum *InlineEnum
	Span       Span
}

// Field is a contiguous bit range within a register or command field-set.
type Field struct {
	Name       Ident
	Doc        []string
	Attr       *string
	Access     Access
	BaseType   BaseType
	Start      int
	End        int
	Conversion *Conversion
	Span       Span
}

// FieldSet is the ordered collection of fields belonging to one register,
// or to one direction of a command.
type FieldSet struct {
	SizeBits *int
	Fields   []Field
	Span     Span
}

// BlockBody is the type-specific payload of a Block object.
type BlockBody struct {
	AddressOffset *big.Int
	Repeat        *Repeat
	Objects       []*Object
}

// RegisterBody is the type-specific payload of a Register object.
type RegisterBody struct {
	Access              Access
	ByteOrder           ByteOrder
	BitOrder            BitOrder
	Address             *big.Int
	SizeBits            *int
	ResetValue          *ResetValue
	Repeat              *Repeat
	AllowBitOverlap     bool
	AllowAddressOverlap bool
	Fields              []Field

	// RefResetOverrides records, per ref name, an alternate reset value
	// supplied by a Ref that targets this register (spec.md §4.E step 3).
	RefResetOverrides map[string]*ResetValue
}

// CommandBody is the type-specific payload of a Command object.
type CommandBody struct {
	ByteOrder           ByteOrder
	BitOrder            BitOrder
	Address             *big.Int
	Repeat              *Repeat
	AllowBitOverlap     bool
	AllowAddressOverlap bool
	In                  *FieldSet
	Out                 *FieldSet
}

// BufferBody is the type-specific payload of a Buffer object.
type BufferBody struct {
	Access  Access
	Address *big.Int
}

// RefBody is the type-specific payload of a Ref object: an alias of
// another object with a structurally-typed override.
type RefBody struct {
	TargetKind ObjectKind
	TargetName Ident
	Override   *Object
}

// Object is the tagged-variant surface node for Block | Register | Command
// | Buffer | Ref. Exactly one of the Kind-matching body pointers is set.
type Object struct {
	Name     Ident
	Doc      []string
	Attr     *string
	Kind     ObjectKind
	Block    *BlockBody
	Register *RegisterBody
	Command  *CommandBody
	Buffer   *BufferBody
	Ref      *RefBody
	Span     Span
}

// Device is the root of the surface AST: an optional GlobalConfig and an
// ordered, named collection of Objects.
type Device struct {
	Config  *GlobalConfig
	Objects []*Object
	Span    Span
}
