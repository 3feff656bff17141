package vm

import (
	"bufio"
	"fmt"
	"io"
)

const tempBase = 5

var segmentSymbols = map[Segment]string{
	SegLocal:    "LCL",
	SegArgument: "ARG",
	SegThis:     "THIS",
	SegThat:     "THAT",
}

var operatorSymbols = map[Op]string{
	OpAdd: "+",
	OpSub: "-",
	OpNeg: "-",
	OpAnd: "&",
	OpOr:  "|",
	OpNot: "!",
}

// jumpMnemonics maps gt/lt to their Hack jump mnemonic explicitly,
// rather than deriving it from the mnemonic's upper-cased text.
var jumpMnemonics = map[Op]string{
	OpGt: "JGT",
	OpLt: "JLT",
}

// CodeWriter emits Hack assembly for a sequence of VM commands. It
// tracks the unit currently being translated (for static-segment
// namespacing), the most recently declared function (for label
// scoping), and a label counter that resets on every Function command.
//
// A CodeWriter is created once per output file; the bootstrap sequence
// is written immediately at construction.
type CodeWriter struct {
	w      *bufio.Writer
	closer io.Closer

	currentUnit     string
	currentFunction string
	labelCounter    int

	err error
}

// NewCodeWriter wraps w, writes the bootstrap, and returns ready to
// translate. If w also implements io.Closer, Close releases it too.
func NewCodeWriter(w io.Writer) *CodeWriter {
	cw := &CodeWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	cw.writeBootstrap()
	return cw
}

// SetUnit must be called before translating each source file; it
// namespaces static-segment symbols so that distinct files' static slots
// never collide.
func (cw *CodeWriter) SetUnit(unit string) {
	cw.currentUnit = unit
}

// Close flushes buffered output and releases the underlying writer.
func (cw *CodeWriter) Close() error {
	if err := cw.w.Flush(); err != nil && cw.err == nil {
		cw.err = err
	}
	if cw.closer != nil {
		if err := cw.closer.Close(); err != nil && cw.err == nil {
			cw.err = err
		}
	}
	return cw.err
}

func (cw *CodeWriter) line(format string, args ...interface{}) {
	if cw.err != nil {
		return
	}
	if _, err := fmt.Fprintf(cw.w, format+"\n", args...); err != nil {
		cw.err = err
		return
	}
	if err := cw.w.Flush(); err != nil {
		cw.err = err
	}
}

func (cw *CodeWriter) uniqueLabel() string {
	return fmt.Sprintf("%s.%d", cw.currentFunction, cw.labelCounter)
}

func (cw *CodeWriter) writeBootstrap() {
	cw.line("@256")
	cw.line("D=A")
	cw.line("@SP")
	cw.line("M=D")
	cw.line("@ARG")
	cw.line("M=D")
	cw.line("@5")
	cw.line("D=A")
	cw.line("@SP")
	cw.line("MD=D+M")
	cw.line("@LCL")
	cw.line("M=D")
	cw.line("@Sys.init")
	cw.line("0;JMP")
}

// writeStackAccess decrements SP and leaves A pointing at the freed slot
// (the value that was on top of the stack).
func (cw *CodeWriter) writeStackAccess() {
	cw.line("@SP")
	cw.line("AM=M-1")
}

func (cw *CodeWriter) incrementStackPointer() {
	cw.line("@SP")
	cw.line("M=M+1")
}

// getValueFromStack pops the top of the stack into D.
func (cw *CodeWriter) getValueFromStack() {
	cw.writeStackAccess()
	cw.line("D=M")
}

// writeStackAssignment appends the value in D to the stack.
func (cw *CodeWriter) writeStackAssignment() {
	cw.line("@SP")
	cw.line("AM=M+1")
	cw.line("A=A-1")
	cw.line("M=D")
}

// WriteArithmetic emits the translation of one of the nine arithmetic
// commands.
func (cw *CodeWriter) WriteArithmetic(op Op) error {
	cw.getValueFromStack()
	switch op {
	case OpNeg, OpNot:
		cw.line("M=%sD", operatorSymbols[op])
		cw.incrementStackPointer()
	default:
		cw.writeBinaryOperation(op)
	}
	return cw.err
}

func (cw *CodeWriter) writeBinaryOperation(op Op) {
	switch op {
	case OpAdd, OpAnd, OpOr:
		cw.writeStackAccess()
		cw.line("M=D%sM", operatorSymbols[op])
		cw.incrementStackPointer()
	case OpSub:
		cw.writeStackAccess()
		cw.line("M=M-D")
		cw.incrementStackPointer()
	default:
		cw.writeLogical(op)
	}
}

func (cw *CodeWriter) writeLogical(op Op) {
	if op == OpEq {
		cw.writeEq()
	} else {
		cw.writeSignComparison(op)
		cw.writeValueComparison(op)
	}
	cw.writeStackAssignment()
	cw.labelCounter++
}

func (cw *CodeWriter) writeEq() {
	label := cw.uniqueLabel()
	cw.line("@SP")
	cw.line("AM=M-1")
	cw.line("D=M-D")
	cw.line("@IF_TRUE_%s", label)
	cw.line("D;JEQ")
	cw.line("@APPEND_TO_STACK_%s", label)
	cw.line("D=0;JMP")
	cw.line("(IF_TRUE_%s)", label)
	cw.line("D=-1")
	cw.line("(APPEND_TO_STACK_%s)", label)
}

// writeSignComparison decides gt/lt by the signs of the two operands
// first, falling back to a direct subtraction only when neither sign
// alone settles the question — at that point the signs are known to
// agree, so the subtraction can't overflow. A bare subtract-then-branch
// would give the wrong answer whenever the operands disagree in sign
// and their difference doesn't fit in 16 bits (e.g. 32767 and -1).
func (cw *CodeWriter) writeSignComparison(op Op) {
	label := cw.uniqueLabel()
	firstJump, secondJump, thirdJump := "JLT", "JLE", "JGE"
	if op == OpLt {
		firstJump, secondJump, thirdJump = "JGT", "JGE", "JLE"
	}
	cw.line("@SECOND_CHECK_%s", label)
	cw.line("D;%s", firstJump)
	cw.getValueFromStack()
	cw.line("@IF_FALSE_%s", label)
	cw.line("D;%s", secondJump)
	cw.line("@COMPARE_BY_VALUE_%s", label)
	cw.line("0;JMP")
	cw.line("(SECOND_CHECK_%s)", label)
	cw.getValueFromStack()
	cw.line("@IF_TRUE_%s", label)
	cw.line("D;%s", thirdJump)
}

func (cw *CodeWriter) writeValueComparison(op Op) {
	label := cw.uniqueLabel()
	cw.line("(COMPARE_BY_VALUE_%s)", label)
	cw.line("@SP")
	cw.line("A=M+1")
	cw.line("D=D-M")
	cw.line("@IF_TRUE_%s", label)
	cw.line("D;%s", jumpMnemonics[op])
	cw.line("(IF_FALSE_%s)", label)
	cw.line("@APPEND_TO_STACK_%s", label)
	cw.line("D=0;JMP")
	cw.line("(IF_TRUE_%s)", label)
	cw.line("D=-1")
	cw.line("(APPEND_TO_STACK_%s)", label)
}

// WritePush emits the translation of "push segment index". It rejects
// pointer indices outside {0,1} and temp indices outside 0-7 rather
// than emitting a malformed address directive.
func (cw *CodeWriter) WritePush(seg Segment, index int) error {
	switch seg {
	case SegConstant:
		cw.line("@%d", index)
		cw.line("D=A")
	case SegPointer:
		if err := cw.writePointerSegment(index); err != nil {
			return err
		}
		cw.line("D=M")
	case SegTemp:
		if index < 0 || index > 7 {
			return &AddressError{Segment: seg, Index: index, Op: "push"}
		}
		cw.line("@%d", tempBase+index)
		cw.line("D=M")
	case SegStatic:
		cw.line("@%s.%d", cw.currentUnit, index)
		cw.line("D=M")
	default:
		cw.writeSegmentAddress(seg, index)
		cw.line("A=D+A")
		cw.line("D=M")
	}
	cw.writeStackAssignment()
	return cw.err
}

// WritePop emits the translation of "pop segment index". The
// destination address is computed before the pop for the dynamic
// segments, because R13 is the only scratch register available to
// carry it across the pop.
func (cw *CodeWriter) WritePop(seg Segment, index int) error {
	switch seg {
	case SegPointer:
		if index < 0 || index > 1 {
			return &AddressError{Segment: seg, Index: index, Op: "pop"}
		}
		cw.getValueFromStack()
		if err := cw.writePointerSegment(index); err != nil {
			return err
		}
	case SegTemp:
		if index < 0 || index > 7 {
			return &AddressError{Segment: seg, Index: index, Op: "pop"}
		}
		cw.getValueFromStack()
		cw.line("@%d", tempBase+index)
	case SegStatic:
		cw.getValueFromStack()
		cw.line("@%s.%d", cw.currentUnit, index)
	default:
		cw.popHelper(seg, index)
	}
	cw.line("M=D")
	return cw.err
}

func (cw *CodeWriter) writeSegmentAddress(seg Segment, index int) {
	cw.line("@%s", segmentSymbols[seg])
	cw.line("D=M")
	cw.line("@%d", index)
}

func (cw *CodeWriter) writePointerSegment(index int) error {
	switch index {
	case 0:
		cw.line("@THIS")
	case 1:
		cw.line("@THAT")
	default:
		return &AddressError{Segment: SegPointer, Index: index, Op: "access"}
	}
	return nil
}

func (cw *CodeWriter) popHelper(seg Segment, index int) {
	cw.writeSegmentAddress(seg, index)
	cw.line("D=D+A")
	cw.line("@R13")
	cw.line("M=D")
	cw.getValueFromStack()
	cw.line("@R13")
	cw.line("A=M")
}

// WriteLabel emits "label L" as the function-scoped symbol F$L, so the
// same user label in two different functions never collides.
func (cw *CodeWriter) WriteLabel(name string) error {
	cw.line("(%s$%s)", cw.currentFunction, name)
	return cw.err
}

func (cw *CodeWriter) WriteGoto(name string) error {
	cw.line("@%s$%s", cw.currentFunction, name)
	cw.line("0;JMP")
	return cw.err
}

func (cw *CodeWriter) WriteIf(name string) error {
	cw.getValueFromStack()
	cw.line("@%s$%s", cw.currentFunction, name)
	cw.line("D;JNE")
	return cw.err
}

// WriteFunction emits "function f k": declares f and pushes k zero
// words to initialise its locals, then updates currentFunction and
// resets the label counter. The reset is load-bearing: it is what lets
// generated labels in two different functions share the same numeric
// suffix without colliding, because every generated label is
// namespaced by currentFunction.
func (cw *CodeWriter) WriteFunction(name string, numLocals int) error {
	cw.line("(%s)", name)
	switch {
	case numLocals == 1:
		cw.line("@SP")
		cw.line("AM=M+1")
		cw.line("A=A-1")
		cw.line("M=0")
	case numLocals > 1:
		cw.line("@%d", numLocals)
		cw.line("D=A")
		cw.line("@SP")
		cw.line("AM=D+M")
		cw.line("A=A-D")
		cw.line("M=0")
		for i := 1; i < numLocals; i++ {
			cw.line("A=A+1")
			cw.line("M=0")
		}
	}
	cw.currentFunction = name
	cw.labelCounter = 0
	return cw.err
}

func (cw *CodeWriter) callHelper(pointerName string) {
	cw.line("@%s", pointerName)
	cw.line("D=M")
	cw.line("@SP")
	cw.line("AM=M+1")
	cw.line("M=D")
}

// WriteCall emits the caller half of the calling convention: push the
// frame (return address, LCL, ARG, THIS, THAT), set ARG/LCL for the
// callee, jump to f, and declare the fresh return address immediately
// after.
func (cw *CodeWriter) WriteCall(name string, numArgs int) error {
	retLabel := cw.uniqueLabel()
	cw.line("@RET_ADDR$%s", retLabel)
	cw.line("D=A")
	cw.line("@SP")
	cw.line("A=M")
	cw.line("M=D")

	cw.callHelper("LCL")
	cw.callHelper("ARG")
	cw.callHelper("THIS")
	cw.callHelper("THAT")

	cw.line("@SP")
	cw.line("MD=M+1")
	cw.line("@LCL")
	cw.line("M=D")

	cw.line("@%d", numArgs)
	cw.line("D=D-A")
	cw.line("@5")
	cw.line("D=D-A")
	cw.line("@ARG")
	cw.line("M=D")

	cw.line("@%s", name)
	cw.line("0;JMP")
	cw.line("(RET_ADDR$%s)", retLabel)
	cw.labelCounter++
	return cw.err
}

func (cw *CodeWriter) returnHelper(pointerName string) {
	cw.line("@R14")
	cw.line("AM=M-1")
	cw.line("D=M")
	cw.line("@%s", pointerName)
	cw.line("M=D")
}

// WriteReturn emits the callee half of the calling convention. The
// return address is saved to R15 before SP is restored, because with
// zero arguments the return-address slot and ARG's target can overlap.
func (cw *CodeWriter) WriteReturn() error {
	cw.line("@LCL")
	cw.line("D=M")
	cw.line("@R14")
	cw.line("M=D")

	cw.line("@5")
	cw.line("A=D-A")
	cw.line("D=M")
	cw.line("@R15")
	cw.line("M=D")

	cw.line("@SP")
	cw.line("AM=M-1")
	cw.line("D=M")
	cw.line("@ARG")
	cw.line("A=M")
	cw.line("M=D")

	cw.line("D=A+1")
	cw.line("@SP")
	cw.line("M=D")

	cw.returnHelper("THAT")
	cw.returnHelper("THIS")
	cw.returnHelper("ARG")
	cw.returnHelper("LCL")

	cw.line("@R15")
	cw.line("A=M;JMP")
	return cw.err
}
