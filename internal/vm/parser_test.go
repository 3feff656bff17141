package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestParser(t *testing.T, src string) *Parser {
	p, err := NewParser(strings.NewReader(src), "test.vm")
	assert.Nil(t, err)
	return p
}

func TestParser_Arithmetic(t *testing.T) {
	p := newTestParser(t, "add\nsub\nneg\neq\ngt\nlt\nand\nor\nnot\n")
	wantOps := []Op{OpAdd, OpSub, OpNeg, OpEq, OpGt, OpLt, OpAnd, OpOr, OpNot}
	for _, want := range wantOps {
		assert.True(t, p.HasMoreCommands())
		kind, err := p.CommandType()
		assert.Nil(t, err)
		assert.Equal(t, Arithmetic, kind)
		assert.Equal(t, want, p.Command().Op)
		assert.Nil(t, p.Advance())
	}
	assert.False(t, p.HasMoreCommands())
}

func TestParser_PushPop(t *testing.T) {
	p := newTestParser(t, "push constant 7\npop local 2\npush static 0\n")

	kind, err := p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Push, kind)
	assert.Equal(t, "constant", p.Arg1())
	assert.Equal(t, 7, p.Arg2())
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Pop, kind)
	assert.Equal(t, "local", p.Arg1())
	assert.Equal(t, 2, p.Arg2())
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Push, kind)
	assert.Equal(t, "static", p.Arg1())
	assert.Equal(t, 0, p.Arg2())
}

func TestParser_PopConstantIsSyntaxError(t *testing.T) {
	p := newTestParser(t, "pop constant 0\n")
	_, err := p.CommandType()
	assert.NotNil(t, err)
	var syntaxErr *SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestParser_FlowAndFunctionCommands(t *testing.T) {
	p := newTestParser(t, "label LOOP\nif-goto LOOP\ngoto LOOP\nfunction Foo.bar 2\ncall Foo.bar 2\nreturn\n")

	kind, err := p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Label, kind)
	assert.Equal(t, "LOOP", p.Arg1())
	assert.Nil(t, p.Advance())

	kind, _ = p.CommandType()
	assert.Equal(t, IfGoto, kind)
	assert.Nil(t, p.Advance())

	kind, _ = p.CommandType()
	assert.Equal(t, Goto, kind)
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Function, kind)
	assert.Equal(t, "Foo.bar", p.Arg1())
	assert.Equal(t, 2, p.Arg2())
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Call, kind)
	assert.Equal(t, "Foo.bar", p.Arg1())
	assert.Equal(t, 2, p.Arg2())
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Return, kind)
}

func TestParser_SkipsBlankLinesAndComments(t *testing.T) {
	src := "// a free-standing comment\n\n   \npush constant 1 // trailing comment\n\nadd\n"
	p := newTestParser(t, src)

	kind, err := p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Push, kind)
	assert.Equal(t, 1, p.Arg2())
	assert.Nil(t, p.Advance())

	kind, err = p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Arithmetic, kind)
	assert.Nil(t, p.Advance())
	assert.False(t, p.HasMoreCommands())
}

func TestParser_CommentAndWhitespaceInsensitivity(t *testing.T) {
	plain := newTestParser(t, "push constant 7\npush constant 8\nadd\n")
	decorated := newTestParser(t, "\n// header\npush constant 7   // seven\n\n\npush constant 8\nadd // sum\n\n")

	for plain.HasMoreCommands() {
		assert.True(t, decorated.HasMoreCommands())
		p1, err1 := plain.CommandType()
		p2, err2 := decorated.CommandType()
		assert.Equal(t, err1, err2)
		assert.Equal(t, p1, p2)
		assert.Equal(t, plain.Command(), decorated.Command())
		assert.Nil(t, plain.Advance())
		assert.Nil(t, decorated.Advance())
	}
	assert.False(t, decorated.HasMoreCommands())
}

func TestParser_ArithmeticMnemonicNeverMatchesAsLabelName(t *testing.T) {
	// "add" alone must classify as Arithmetic, not as a malformed label
	// or function command.
	p := newTestParser(t, "add\n")
	kind, err := p.CommandType()
	assert.Nil(t, err)
	assert.Equal(t, Arithmetic, kind)
}

func TestParser_MnemonicsAreCaseSensitive(t *testing.T) {
	p := newTestParser(t, "ADD\n")
	_, err := p.CommandType()
	assert.NotNil(t, err)
}

func TestParser_SegmentNamesAreCaseSensitive(t *testing.T) {
	p := newTestParser(t, "push Constant 7\n")
	_, err := p.CommandType()
	assert.NotNil(t, err)
}

func TestParser_RejectsUnknownMnemonic(t *testing.T) {
	p := newTestParser(t, "frobnicate constant 1\n")
	_, err := p.CommandType()
	assert.NotNil(t, err)
}

func TestParser_RejectsMalformedLabelName(t *testing.T) {
	p := newTestParser(t, "label 9notvalid\n")
	_, err := p.CommandType()
	assert.NotNil(t, err)
}

func TestParser_SyntaxErrorReportsFileAndLine(t *testing.T) {
	p := newTestParser(t, "push constant 1\nbogus line here\n")
	assert.Nil(t, p.Advance())
	_, err := p.CommandType()
	var syntaxErr *SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, "test.vm", syntaxErr.File)
	assert.Equal(t, 2, syntaxErr.Line)
}
