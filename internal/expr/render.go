package expr

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// String renders e in infix form, e.g. "(x0 + u)*v".
func (e Expr) String() string {
	if e.IsZero() {
		return "<nil>"
	}
	var sb strings.Builder
	e.writeInfix(&sb)
	return sb.String()
}

func (e Expr) writeInfix(sb *strings.Builder) {
	n := e.n()
	switch n.kind {
	case KindConstant:
		sb.WriteString(ir.FormatFloat(n.value))
	case KindCoordinate:
		sb.WriteString("x")
		sb.WriteString(strconv.Itoa(n.dir))
	case KindField, KindUnknown, KindTest:
		sb.WriteString(n.name)
	case KindSum:
		e.writeOperand(sb, e.Left(), false)
		if n.sign < 0 {
			sb.WriteString(" - ")
		} else {
			sb.WriteString(" + ")
		}
		e.writeOperand(sb, e.Right(), true)
	case KindProduct:
		if n.sign < 0 {
			sb.WriteString("-")
		}
		e.writeOperand(sb, e.Left(), false)
		sb.WriteString("*")
		e.writeOperand(sb, e.Right(), true)
	}
}

func (e Expr) writeOperand(sb *strings.Builder, child Expr, right bool) {
	wrap := e.parenthesizeOperands(right) && child.parenthesizeSelf()
	if wrap {
		sb.WriteString("(")
	}
	child.writeInfix(sb)
	if wrap {
		sb.WriteString(")")
	}
}

// parenthesizeSelf reports whether e needs parentheses when it appears as
// an operand of a tighter-binding parent.
func (e Expr) parenthesizeSelf() bool {
	switch e.Kind() {
	case KindSum:
		return true
	case KindProduct:
		return e.Sign() < 0
	case KindConstant:
		return e.Value() < 0
	}
	return false
}

// parenthesizeOperands reports whether e wraps the operand on the given
// side when that operand asks for it.
func (e Expr) parenthesizeOperands(right bool) bool {
	switch e.Kind() {
	case KindProduct:
		return true
	case KindSum:
		return right && e.Sign() < 0
	}
	return false
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode `xml:",any"`
}

func (e Expr) xmlTree() xmlNode {
	n := e.n()
	elem := xmlNode{XMLName: xml.Name{Local: xmlElementName(n.kind)}}
	attr := func(name, value string) {
		elem.Attrs = append(elem.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	}
	switch n.kind {
	case KindConstant:
		attr("value", ir.FormatFloat(n.value))
	case KindCoordinate:
		attr("dir", strconv.Itoa(n.dir))
	case KindField:
		attr("name", n.name)
	case KindUnknown, KindTest:
		attr("name", n.name)
		attr("funcID", strconv.Itoa(n.funcID))
	case KindSum, KindProduct:
		attr("sign", strconv.Itoa(n.sign))
		elem.Children = []xmlNode{e.Left().xmlTree(), e.Right().xmlTree()}
	}
	return elem
}

func xmlElementName(k Kind) string {
	name := k.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// XML renders e as nested elements, e.g.
// <Sum sign="1"><Constant value="2"></Constant>...</Sum>.
func (e Expr) XML() (string, error) {
	out, err := xml.Marshal(e.xmlTree())
	if err != nil {
		return "", fmt.Errorf("render %s as xml: %w", e.Kind(), err)
	}
	return string(out), nil
}
