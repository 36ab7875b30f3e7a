// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package assembler

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type sourceFile struct {
	Lines []*sourceLine `@@*`
}

type sourceLine struct {
	Pos       lexer.Position
	Labels    []*sourceLabel   `@@*`
	Statement *sourceStatement `@@? EOL`
}

type sourceLabel struct {
	Pos  lexer.Position
	Name string `@Label`
}

type sourceStatement struct {
	Directive   *sourceDirective   `  @@`
	Instruction *sourceInstruction `| @@`
}

type sourceDirective struct {
	Pos      lexer.Position
	Name     string           `@Directive`
	Operands []*sourceOperand `( @@ ( ","? @@ )* )?`
}

type sourceInstruction struct {
	Pos      lexer.Position
	Mnemonic string           `@Ident`
	Operands []*sourceOperand `( @@ ( ","? @@ )* )?`
}

type sourceOperand struct {
	Pos    lexer.Position
	Number *string `  @Number`
	Char   *string `| @Char`
	String *string `| @String`
	Ident  *string `| @Ident`
}

var sourceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "EOL", Pattern: `\n`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"`},
	{Name: "Char", Pattern: `'(\\.|[^'\\\n])+'`},
	{Name: "Directive", Pattern: `\.[a-zA-Z]+`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|[0-9]+`},
	{Name: "Label", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*:`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `,`},
})

var sourceParser = participle.MustBuild[sourceFile](
	participle.Lexer(sourceLexer),
	participle.Elide("Whitespace", "Comment"),
)

func (operand *sourceOperand) text() string {
	switch {
	case operand.Number != nil:
		return *operand.Number
	case operand.Char != nil:
		return *operand.Char
	case operand.String != nil:
		return *operand.String
	case operand.Ident != nil:
		return *operand.Ident
	default:
		return ""
	}
}

func (operand *sourceOperand) cursor() Cursor {
	return cursorAt(operand.Pos, len(operand.text()))
}
