// Package dsl implements the purpose-built textual syntax of spec.md
// §4.C: a hand-written lexer and recursive-descent parser that produce
// the same surface AST (package ast) as the manifest deserializer.
//
// The lexer is a hand-written scanner over a byte-offset cursor
// (newLexer, then Tokenize) that accumulates errors rather than stopping
// at the first one. No generated-parser toolchain is used, since nothing
// in this module's source corpus depends on one.
package dsl

import (
	"fmt"
	"math/big"
)

// Kind discriminates a lexical token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Int
	String

	// Punctuation and operators.
	LBrace   // {
	RBrace   // }
	LParen   // (
	RParen   // )
	Comma    // ,
	Semi     // ;
	Colon    // :
	Eq       // =
	DotDot   // ..
	DotDotEq // ..=
	AttrOpen // #[
	RBracket // ]

	// Keywords.
	KwConfig
	KwType
	KwBlock
	KwRegister
	KwCommand
	KwBuffer
	KwRef
	KwIn
	KwOut
	KwAs
	KwTry
	KwEnum
	KwDefault
	KwCatchAll
	KwDoc
	KwCfg
	KwTrue
	KwFalse
)

var keywords = map[string]Kind{
	"config":    KwConfig,
	"type":      KwType,
	"block":     KwBlock,
	"register":  KwRegister,
	"command":   KwCommand,
	"buffer":    KwBuffer,
	"ref":       KwRef,
	"in":        KwIn,
	"out":       KwOut,
	"as":        KwAs,
	"try":       KwTry,
	"enum":      KwEnum,
	"default":   KwDefault,
	"catch_all": KwCatchAll,
	"doc":       KwDoc,
	"cfg":       KwCfg,
	"true":      KwTrue,
	"false":     KwFalse,
}

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "identifier"
	case Int:
		return "integer"
	case String:
		return "string"
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Comma:
		return "','"
	case Semi:
		return "';'"
	case Colon:
		return "':'"
	case Eq:
		return "'='"
	case DotDot:
		return "'..'"
	case DotDotEq:
		return "'..='"
	case AttrOpen:
		return "'#['"
	case RBracket:
		return "']'"
	default:
		for word, kind := range keywords {
			if kind == k {
				return fmt.Sprintf("%q", word)
			}
		}

		return "token"
	}
}

// Token is one lexical unit with its source span and decoded literal.
type Token struct {
	Kind   Kind
	Text   string   // raw source text (identifiers, keywords)
	Str    string   // decoded content, for String tokens
	IntVal *big.Int // decoded value, for Int tokens
	Offset int
	Length int
}
