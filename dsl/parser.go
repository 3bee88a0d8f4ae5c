package dsl

import (
	"math/big"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
)

// Header items inside a block/register/command body are written as either
// "const NAME = Value;" for the constant-like slots named in spec.md §6
// ("Reserved identifiers in the DSL"), or "name = Value;" for the
// lowercase settings (access, byte_order, bit_order). This convention is
// this parser's resolution of an otherwise underspecified corner of the
// grammar: the grammar names BlockHead/RegHead/CmdHead without expanding
// them.
const (
	constAddress             = "ADDRESS"
	constAddressOffset       = "ADDRESS_OFFSET"
	constSizeBits            = "SIZE_BITS"
	constSizeBitsIn          = "SIZE_BITS_IN"
	constSizeBitsOut         = "SIZE_BITS_OUT"
	constResetValue          = "RESET_VALUE"
	constRepeat              = "REPEAT"
	constAllowBitOverlap     = "ALLOW_BIT_OVERLAP"
	constAllowAddressOverlap = "ALLOW_ADDRESS_OVERLAP"
)

// Parser is a recursive-descent parser over a DSL token stream, producing
// a devast.Device. It never panics on malformed input: every syntax
// problem is recorded to sink and parsing resynchronizes at the next
// plausible boundary, matching the "collect then surface" propagation
// policy used by every later pass.
type Parser struct {
	toks []Token
	pos  int
	sink *diag.Sink
}

// Parse tokenizes and parses source into a surface-AST Device, reporting
// every lexical and syntactic problem to sink. The returned Device is
// always non-nil; callers should check sink.HasErrors() before trusting
// it.
func Parse(source []byte, sink *diag.Sink) *devast.Device {
	lx := newLexer(source)
	toks, lexErrs := lx.Tokenize()

	for _, e := range lexErrs {
		sink.Errorf(diag.KindSyntax, "dsl-lex", devast.Span{Offset: e.Offset, Length: e.Length}, "%s", e.Message)
	}

	p := &Parser{toks: toks, sink: sink}

	return p.parseDevice()
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}

	return p.toks[p.pos]
}

func (p *Parser) at(k Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() Token {
	tok := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}

	return tok
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.sink.Errorf(diag.KindSyntax, "dsl-parse", devast.Span{Offset: tok.Offset, Length: tok.Length}, format, args...)
}

// expect consumes and returns the current token if it has kind k,
// otherwise reports a diagnostic and returns the token unconsumed so the
// caller can attempt to resynchronize.
func (p *Parser) expect(k Kind) Token {
	if p.at(k) {
		return p.advance()
	}

	p.errorf(p.cur(), "expected %s, found %s", k, p.cur().Kind)

	return p.cur()
}

// skipPast consumes tokens until it passes one of kind k (or hits EOF),
// used to resynchronize after a malformed construct.
func (p *Parser) skipPast(k Kind) {
	for !p.at(EOF) {
		if p.advance().Kind == k {
			return
		}
	}
}

func (p *Parser) parseDevice() *devast.Device {
	dev := &devast.Device{}
	start := p.cur().Offset

	if p.at(KwConfig) {
		dev.Config = p.parseGlobalConfig()
	}

	// Top-level objects may be separated by commas; the separator is
	// optional, so objects written one after another also parse.
	for !p.at(EOF) {
		obj := p.parseObject()
		if obj != nil {
			dev.Objects = append(dev.Objects, obj)
		}

		if p.at(Comma) {
			p.advance()
		}
	}

	dev.Span = devast.Span{Offset: start, Length: p.cur().Offset - start}

	return dev
}

func (p *Parser) parseGlobalConfig() *devast.GlobalConfig {
	start := p.advance().Offset // 'config'
	p.expect(LBrace)

	cfg := &devast.GlobalConfig{}

	for !p.at(RBrace) && !p.at(EOF) {
		itemStart := p.cur().Offset

		if p.at(KwType) {
			p.advance()
		}

		name := p.expect(Ident)
		p.expect(Eq)
		value := p.parseConfigValue()
		p.expect(Semi)

		cfg.Items = append(cfg.Items, devast.GlobalConfigItem{
			Name:  name.Text,
			Value: value,
			Span:  devast.Span{Offset: itemStart, Length: p.cur().Offset - itemStart},
		})
	}

	p.expect(RBrace)

	cfg.Span = devast.Span{Offset: start, Length: p.cur().Offset - start}

	return cfg
}

func (p *Parser) parseConfigValue() devast.ConfigValue {
	if p.at(String) {
		s := p.advance().Str

		return devast.ConfigValue{String: &s}
	}

	if p.at(Int) {
		return devast.ConfigValue{Word: p.advance().Text}
	}

	tok := p.advance()

	return devast.ConfigValue{Word: tok.Text}
}

// AttrList := ( '#[' 'doc' '=' STRING ']' | '#[' 'cfg' '(' ANY_TOKENS ')' ']' )*
func (p *Parser) parseAttrs() (doc []string, attr *string) {
	for p.at(AttrOpen) {
		p.advance()

		switch {
		case p.at(KwDoc):
			p.advance()
			p.expect(Eq)

			s := p.expect(String)
			doc = append(doc, s.Str)
		case p.at(KwCfg):
			p.advance()
			p.expect(LParen)

			depth := 1
			var raw []byte

			for depth > 0 && !p.at(EOF) {
				if p.at(LParen) {
					depth++
				}

				if p.at(RParen) {
					depth--
					if depth == 0 {
						p.advance()

						break
					}
				}

				raw = append(raw, []byte(p.advance().Text)...)
				raw = append(raw, ' ')
			}

			s := string(raw)
			attr = &s
		default:
			p.errorf(p.cur(), "expected 'doc' or 'cfg' attribute")
			p.skipPast(RBracket)

			continue
		}

		p.expect(RBracket)
	}

	return doc, attr
}

func (p *Parser) parseObject() *devast.Object {
	doc, attr := p.parseAttrs()

	start := p.cur().Offset

	var obj *devast.Object

	switch {
	case p.at(KwBlock):
		obj = p.parseBlock()
	case p.at(KwRegister):
		obj = p.parseRegister()
	case p.at(KwCommand):
		obj = p.parseCommand()
	case p.at(KwBuffer):
		obj = p.parseBuffer()
	case p.at(KwRef):
		obj = p.parseRef()
	default:
		p.errorf(p.cur(), "expected an object (block, register, command, buffer, ref)")
		p.skipPast(Comma)

		return nil
	}

	if obj == nil {
		return nil
	}

	obj.Doc = doc
	obj.Attr = attr
	obj.Span = devast.Span{Offset: start, Length: p.cur().Offset - start}

	return obj
}

func (p *Parser) parseIdent() devast.Ident {
	tok := p.expect(Ident)

	return devast.Ident{Name: tok.Text, Span: devast.Span{Offset: tok.Offset, Length: tok.Length}}
}

func (p *Parser) parseBlock() *devast.Object {
	p.advance() // 'block'
	name := p.parseIdent()
	p.expect(LBrace)

	body := &devast.BlockBody{}

	for !p.at(RBrace) && !p.at(EOF) {
		if p.atHeaderItem() {
			p.parseBlockHeadItem(body)

			continue
		}

		break
	}

	for !p.at(RBrace) && !p.at(EOF) {
		obj := p.parseObject()
		if obj != nil {
			body.Objects = append(body.Objects, obj)
		}

		if p.at(Comma) {
			p.advance()

			continue
		}

		break
	}

	p.expect(RBrace)

	return &devast.Object{Name: name, Kind: devast.KindBlock, Block: body}
}

// atHeaderItem reports whether the current token begins a head item
// ("const NAME = Value;" or "name = Value;") rather than the start of a
// nested object or field. A leading "const" is consumed here, so the
// head-item parsers always start at the item's name.
func (p *Parser) atHeaderItem() bool {
	if !p.at(Ident) {
		return false
	}

	next := p.toks[min(p.pos+1, len(p.toks)-1)]

	if p.cur().Text == "const" && next.Kind == Ident {
		p.advance()

		next = p.toks[min(p.pos+1, len(p.toks)-1)]
	}

	return next.Kind == Eq || next.Kind == Semi
}

func (p *Parser) parseBlockHeadItem(body *devast.BlockBody) {
	name := p.advance()

	switch name.Text {
	case constAddressOffset:
		p.expect(Eq)
		body.AddressOffset = p.parseIntValue()
	case constRepeat:
		p.expect(Eq)
		body.Repeat = p.parseRepeatValue()
	default:
		p.errorf(name, "unknown block setting %q", name.Text)
		p.skipValueUntilSemi()
	}

	p.expect(Semi)
}

func (p *Parser) skipValueUntilSemi() {
	for !p.at(Semi) && !p.at(EOF) && !p.at(RBrace) {
		p.advance()
	}
}

func (p *Parser) parseIntValue() *big.Int {
	tok := p.expect(Int)
	if tok.IntVal == nil {
		return big.NewInt(0)
	}

	return tok.IntVal
}

func (p *Parser) parseRepeatValue() *devast.Repeat {
	start := p.cur().Offset
	p.expect(LBrace)
	count := p.parseIntValue()
	p.expect(Comma)
	stride := p.parseIntValue()
	p.expect(RBrace)

	return &devast.Repeat{Count: count, Stride: stride, Span: devast.Span{Offset: start, Length: p.cur().Offset - start}}
}

func (p *Parser) parseAccessWord(tok Token) devast.Access {
	access, ok := devast.ParseAccess(tok.Text)
	if !ok {
		p.errorf(tok, "unknown access %q", tok.Text)
	}

	return access
}

func (p *Parser) parseByteOrderWord(tok Token) devast.ByteOrder {
	order, ok := devast.ParseByteOrder(tok.Text)
	if !ok {
		p.errorf(tok, "unknown byte order %q", tok.Text)
	}

	return order
}

func (p *Parser) parseBitOrderWord(tok Token) devast.BitOrder {
	order, ok := devast.ParseBitOrder(tok.Text)
	if !ok {
		p.errorf(tok, "unknown bit order %q", tok.Text)
	}

	return order
}

func (p *Parser) parseResetValue() *devast.ResetValue {
	start := p.cur().Offset

	if p.at(Int) {
		v := p.parseIntValue()

		return &devast.ResetValue{Integer: v, Span: devast.Span{Offset: start, Length: p.cur().Offset - start}}
	}

	p.expect(LParen)

	var bytes []byte

	for !p.at(RParen) && !p.at(EOF) {
		v := p.parseIntValue()
		bytes = append(bytes, byte(v.Int64()))

		if p.at(Comma) {
			p.advance()

			continue
		}

		break
	}

	p.expect(RParen)

	return &devast.ResetValue{Bytes: bytes, Span: devast.Span{Offset: start, Length: p.cur().Offset - start}}
}

func (p *Parser) parseRegister() *devast.Object {
	p.advance() // 'register'
	name := p.parseIdent()

	body := &devast.RegisterBody{}

	if p.at(LBrace) {
		p.advance()

		for p.atHeaderItem() {
			p.parseRegisterHeadItem(body)
		}

		body.Fields = p.parseFieldList()
		p.expect(RBrace)
	}

	return &devast.Object{Name: name, Kind: devast.KindRegister, Register: body}
}

func (p *Parser) parseRegisterHeadItem(body *devast.RegisterBody) {
	name := p.advance()

	switch name.Text {
	case "access":
		p.expect(Eq)
		body.Access = p.parseAccessWord(p.advance())
	case "byte_order":
		p.expect(Eq)
		body.ByteOrder = p.parseByteOrderWord(p.advance())
	case "bit_order":
		p.expect(Eq)
		body.BitOrder = p.parseBitOrderWord(p.advance())
	case constAddress:
		p.expect(Eq)
		body.Address = p.parseIntValue()
	case constSizeBits:
		p.expect(Eq)

		v := int(p.parseIntValue().Int64())
		body.SizeBits = &v
	case constResetValue:
		p.expect(Eq)
		body.ResetValue = p.parseResetValue()
	case constRepeat:
		p.expect(Eq)
		body.Repeat = p.parseRepeatValue()
	case constAllowBitOverlap:
		body.AllowBitOverlap = p.parseFlagValue()
	case constAllowAddressOverlap:
		body.AllowAddressOverlap = p.parseFlagValue()
	default:
		p.errorf(name, "unknown register setting %q", name.Text)
		p.skipValueUntilSemi()
	}

	p.expect(Semi)
}

// parseFlagValue accepts either a bare flag ("NAME;") or an explicit
// boolean ("NAME = true;"/"NAME = false;").
func (p *Parser) parseFlagValue() bool {
	if !p.at(Eq) {
		return true
	}

	p.advance()

	switch {
	case p.at(KwTrue):
		p.advance()

		return true
	case p.at(KwFalse):
		p.advance()

		return false
	default:
		p.errorf(p.cur(), "expected 'true' or 'false'")

		return false
	}
}

func (p *Parser) parseCommand() *devast.Object {
	p.advance() // 'command'
	name := p.parseIdent()

	body := &devast.CommandBody{}

	var sizeBitsIn, sizeBitsOut *int

	switch {
	case p.at(Eq):
		p.advance()
		body.Address = p.parseIntValue()
	case p.at(LBrace):
		p.advance()

		for p.atHeaderItem() {
			p.parseCommandHeadItem(body, &sizeBitsIn, &sizeBitsOut)
		}

		if p.at(KwIn) {
			p.advance()
			p.expect(LBrace)
			fields := p.parseFieldList()
			p.expect(RBrace)
			body.In = &devast.FieldSet{Fields: fields, SizeBits: sizeBitsIn}

			if p.at(Comma) {
				p.advance()
			}
		}

		if p.at(KwOut) {
			p.advance()
			p.expect(LBrace)
			fields := p.parseFieldList()
			p.expect(RBrace)
			body.Out = &devast.FieldSet{Fields: fields, SizeBits: sizeBitsOut}

			if p.at(Comma) {
				p.advance()
			}
		}

		p.expect(RBrace)
	}

	return &devast.Object{Name: name, Kind: devast.KindCommand, Command: body}
}

func (p *Parser) parseCommandHeadItem(body *devast.CommandBody, sizeBitsIn, sizeBitsOut **int) {
	name := p.advance()

	switch name.Text {
	case "byte_order":
		p.expect(Eq)
		body.ByteOrder = p.parseByteOrderWord(p.advance())
	case "bit_order":
		p.expect(Eq)
		body.BitOrder = p.parseBitOrderWord(p.advance())
	case constAddress:
		p.expect(Eq)
		body.Address = p.parseIntValue()
	case constRepeat:
		p.expect(Eq)
		body.Repeat = p.parseRepeatValue()
	case constAllowBitOverlap:
		body.AllowBitOverlap = p.parseFlagValue()
	case constAllowAddressOverlap:
		body.AllowAddressOverlap = p.parseFlagValue()
	case constSizeBitsIn:
		p.expect(Eq)
		v := int(p.parseIntValue().Int64())
		*sizeBitsIn = &v
	case constSizeBitsOut:
		p.expect(Eq)
		v := int(p.parseIntValue().Int64())
		*sizeBitsOut = &v
	default:
		p.errorf(name, "unknown command setting %q", name.Text)
		p.skipValueUntilSemi()
	}

	p.expect(Semi)
}

func (p *Parser) parseBuffer() *devast.Object {
	p.advance() // 'buffer'
	name := p.parseIdent()

	body := &devast.BufferBody{}

	if p.at(Colon) {
		p.advance()
		body.Access = p.parseAccessWord(p.advance())
	}

	if p.at(Eq) {
		p.advance()
		body.Address = p.parseIntValue()
	}

	return &devast.Object{Name: name, Kind: devast.KindBuffer, Buffer: body}
}

func (p *Parser) parseRef() *devast.Object {
	p.advance() // 'ref'
	name := p.parseIdent()
	p.expect(Eq)

	target := p.parseRefTarget()

	return &devast.Object{Name: name, Kind: devast.KindRef, Ref: target}
}

func (p *Parser) parseRefTarget() *devast.RefBody {
	var kind devast.ObjectKind

	switch {
	case p.at(KwBlock):
		kind = devast.KindBlock
	case p.at(KwRegister):
		kind = devast.KindRegister
	case p.at(KwCommand):
		kind = devast.KindCommand
	case p.at(KwBuffer):
		kind = devast.KindBuffer
	default:
		p.errorf(p.cur(), "expected ref target kind (block, register, command, buffer)")

		return &devast.RefBody{}
	}

	kindPos := p.pos

	p.advance()
	targetName := p.parseIdent()

	body := &devast.RefBody{TargetKind: kind, TargetName: targetName}

	if p.at(LBrace) {
		// The per-kind object parsers start at the kind keyword, so rewind
		// to it and let them read "kind Name { ... }" again.
		p.pos = kindPos
		override := p.parseObjectBodyOverride(kind, targetName)
		body.Override = override
	}

	return body
}

// parseObjectBodyOverride parses the "{ ... }" override body attached to
// a ref, reusing the same per-kind body parser as a freestanding object
// of that kind would use.
func (p *Parser) parseObjectBodyOverride(kind devast.ObjectKind, name devast.Ident) *devast.Object {
	switch kind {
	case devast.KindRegister:
		obj := p.parseRegister()
		obj.Name = name

		return obj
	case devast.KindCommand:
		obj := p.parseCommand()
		obj.Name = name

		return obj
	case devast.KindBlock:
		obj := p.parseBlock()
		obj.Name = name

		return obj
	case devast.KindBuffer:
		obj := p.parseBuffer()
		obj.Name = name

		return obj
	default:
		return nil
	}
}

// Field := AttrList IDENT ':' Access? BaseType Conversion? '=' FieldAddr
func (p *Parser) parseFieldList() []devast.Field {
	var fields []devast.Field

	for !p.at(RBrace) && !p.at(EOF) {
		if p.at(KwIn) || p.at(KwOut) {
			break
		}

		f := p.parseField()
		fields = append(fields, f)

		if p.at(Comma) {
			p.advance()

			continue
		}

		break
	}

	return fields
}

func (p *Parser) parseField() devast.Field {
	doc, attr := p.parseAttrs()

	start := p.cur().Offset
	name := p.parseIdent()
	p.expect(Colon)

	var access devast.Access

	if p.atAccessWord() {
		access = p.parseAccessWord(p.advance())
	}

	baseType := p.parseBaseType()

	var conv *devast.Conversion

	if p.at(KwAs) {
		conv = p.parseConversion()
	}

	p.expect(Eq)

	start2, end := p.parseFieldAddr()

	return devast.Field{
		Name:       name,
		Doc:        doc,
		Attr:       attr,
		Access:     access,
		BaseType:   baseType,
		Start:      start2,
		End:        end,
		Conversion: conv,
		Span:       devast.Span{Offset: start, Length: p.cur().Offset - start},
	}
}

func (p *Parser) atAccessWord() bool {
	if !p.at(Ident) {
		return false
	}

	_, ok := devast.ParseAccess(p.cur().Text)

	return ok
}

func (p *Parser) parseBaseType() devast.BaseType {
	tok := p.expect(Ident)

	baseType, ok := devast.ParseBaseType(tok.Text)
	if !ok {
		p.errorf(tok, "expected a base type (bool, uint, int), found %q", tok.Text)
	}

	return baseType
}

// FieldAddr := INT | INT '..' INT | INT '..=' INT
func (p *Parser) parseFieldAddr() (start, end int) {
	first := int(p.parseIntValue().Int64())

	switch {
	case p.at(DotDot):
		p.advance()

		second := int(p.parseIntValue().Int64())

		return first, second
	case p.at(DotDotEq):
		p.advance()

		second := int(p.parseIntValue().Int64())

		return first, second + 1
	default:
		return first, first + 1
	}
}

// Conversion := 'as' 'try'? ( TypePath | 'enum' IDENT '{' EnumVariant (',' EnumVariant)* ','? '}' )
func (p *Parser) parseConversion() *devast.Conversion {
	start := p.advance().Offset // 'as'

	fallible := false
	if p.at(KwTry) {
		p.advance()

		fallible = true
	}

	if p.at(KwEnum) {
		p.advance()

		enumName := p.expect(Ident).Text
		p.expect(LBrace)

		var variants []devast.EnumVariant

		for !p.at(RBrace) && !p.at(EOF) {
			variants = append(variants, p.parseEnumVariant())

			if p.at(Comma) {
				p.advance()

				continue
			}

			break
		}

		p.expect(RBrace)

		return &devast.Conversion{
			Fallible: fallible,
			InlineEnum: &devast.InlineEnum{
				Name:     enumName,
				Variants: variants,
				Span:     devast.Span{Offset: start, Length: p.cur().Offset - start},
			},
			Span: devast.Span{Offset: start, Length: p.cur().Offset - start},
		}
	}

	path := p.parseTypePath()

	return &devast.Conversion{Fallible: fallible, TypePath: path, Span: devast.Span{Offset: start, Length: p.cur().Offset - start}}
}

func (p *Parser) parseTypePath() string {
	var parts []string

	parts = append(parts, p.expect(Ident).Text)

	for p.at(Colon) {
		p.advance()
		p.expect(Colon)
		parts = append(parts, p.expect(Ident).Text)
	}

	path := parts[0]
	for _, part := range parts[1:] {
		path += "::" + part
	}

	return path
}

func (p *Parser) parseEnumVariant() devast.EnumVariant {
	doc, attr := p.parseAttrs()

	start := p.cur().Offset
	name := p.parseIdent()

	variant := devast.EnumVariant{Name: name, Doc: doc, Attr: attr, Kind: devast.EnumVariantAuto}

	if p.at(Eq) {
		p.advance()

		switch {
		case p.at(KwDefault):
			p.advance()

			variant.Kind = devast.EnumVariantDefault
		case p.at(KwCatchAll):
			p.advance()

			variant.Kind = devast.EnumVariantCatchAll
		default:
			variant.Kind = devast.EnumVariantExplicit
			variant.Explicit = p.parseIntValue()
		}
	}

	variant.Span = devast.Span{Offset: start, Length: p.cur().Offset - start}

	return variant
}
