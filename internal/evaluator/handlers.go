package evaluator

import (
	"strconv"

	"github.com/oxhq/basecode/internal/arena"
	"github.com/oxhq/basecode/internal/ast"
	"github.com/oxhq/basecode/internal/diag"
	"github.com/oxhq/basecode/internal/scope"
)

func (e *Evaluator) installHandlers() {
	e.handlers["int_literal"] = handleInt
	e.handlers["float_literal"] = handleFloat
	e.handlers["string_literal"] = handleString
	e.handlers["bool_literal"] = handleBool
	e.handlers["character_literal"] = handleCharacter
	e.handlers["identifier_ref"] = handleIdentifierRef
	e.handlers["binary_expression"] = handleBinary
	e.handlers["unary_expression"] = handleUnary
	e.handlers["declaration"] = handleDeclaration
	e.handlers["assignment_statement"] = handleAssignment
	e.handlers["block"] = handleBlock
	e.handlers["if_statement"] = handleIf
	e.handlers["while_statement"] = handleWhile
	e.handlers["for_in_statement"] = handleForIn
	e.handlers["return_statement"] = handleReturn
	e.handlers["break_statement"] = handleBreak
	e.handlers["continue_statement"] = handleContinue
	e.handlers["call_expression"] = handleCall
	e.handlers["argument_list"] = handleArgumentList
	e.handlers["member_access"] = handleMemberAccess
	e.handlers["attribute"] = handleAttribute
	e.handlers["comment"] = handleComment
	e.handlers["procedure_expression"] = handleProcedureExpression
	e.handlers["switch_statement"] = handleSwitch
	e.handlers["case_clause"] = handleCase
	e.handlers["fallthrough_statement"] = handleFallthrough
	e.handlers["defer_statement"] = handleDefer
}

func handleInt(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	v, err := strconv.ParseInt(node.Text, 0, 64)
	if err != nil {
		ctx.Diag.Errorf(diag.P041, locOf(ctx, node), "bad numeric literal: %s", node.Text)
		return arena.NoElement, false
	}
	return e.Builder.Int(v, false, loc(node, ctx.Module)), true
}

func handleFloat(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	v, err := strconv.ParseFloat(node.Text, 64)
	if err != nil {
		ctx.Diag.Errorf(diag.P041, locOf(ctx, node), "bad numeric literal: %s", node.Text)
		return arena.NoElement, false
	}
	return e.Builder.Float(v, loc(node, ctx.Module)), true
}

func handleString(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	return e.Builder.String(node.Text, loc(node, ctx.Module)), true
}

func handleBool(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	return e.Builder.Bool(node.Text == "true"), true
}

func handleCharacter(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	r := rune(0)
	if len(node.Text) > 0 {
		r = []rune(node.Text)[0]
	}
	return e.Builder.Character(r, loc(node, ctx.Module)), true
}

// handleIdentifierRef builds an identifier_reference capturing the current
// scope, per §4.4 sub-pass 1 ("the scope captured at reference-creation
// time").
func handleIdentifierRef(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	sym := &arena.SymbolPayload{Name: node.Text}
	symElem := &arena.CodeElement{Kind: arena.KindSymbol, Payload: sym, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(symElem)
	ref := &arena.CodeElement{
		Kind: arena.KindIdentifierReference,
		Payload: &arena.IdentifierReferencePayload{
			Symbol: symElem.ID,
			Scope:  ctx.Scope,
		},
		Location: loc(node, ctx.Module),
	}
	e.Builder.Arena.Add(ref)
	e.Builder.Arena.Adopt(ref.ID, symElem.ID)
	return ref.ID, true
}

func handleBinary(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	left := node.Field("left")
	right := node.Field("right")
	if left == nil || right == nil {
		errKindMismatch(ctx, node, "binary_expression with left/right fields")
		return arena.NoElement, false
	}
	lhs, ok1 := e.evalStatement(ctx, left)
	rhs, ok2 := e.evalStatement(ctx, right)
	if !ok1 || !ok2 {
		return arena.NoElement, false
	}
	return e.Builder.Binary(node.Text, lhs, rhs, loc(node, ctx.Module)), true
}

func handleUnary(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	operand := node.Field("operand")
	if operand == nil {
		errKindMismatch(ctx, node, "unary_expression with operand field")
		return arena.NoElement, false
	}
	id, ok := e.evalStatement(ctx, operand)
	if !ok {
		return arena.NoElement, false
	}
	return e.Builder.Unary(node.Text, id, loc(node, ctx.Module)), true
}

// isConstantExpressionKind reports whether an AST node kind can only ever
// produce a compile-time constant, used by declare_identifier below.
func isConstantExpressionKind(kind string) bool {
	switch kind {
	case "int_literal", "float_literal", "string_literal", "bool_literal", "character_literal", "procedure_expression":
		return true
	default:
		return false
	}
}

// handleProcedureExpression builds a procedure_type plus its single
// procedure_instance body from a `proc(params) returns { ... }`-shaped
// node. A procedure declaration is always constant (§4.3: procedures have
// no runtime-assignable form), so declare_identifier wraps the instance in
// a plain initializer rather than a synthetic assignment.
func handleProcedureExpression(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	procType := e.Builder.ProcedureType(ctx.Scope, loc(node, ctx.Module))

	if params := node.Field("parameters"); params != nil {
		for _, p := range params.Children {
			nameNode := p.Field("name")
			if nameNode == nil {
				continue
			}
			typeRef := e.unknownType(ctx, nameNode.Text)
			if typeNode := p.Field("type"); typeNode != nil {
				typeRef = e.buildTypeReference(ctx, typeNode)
			}
			e.Builder.AddParameter(procType, nameNode.Text, typeRef, loc(p, ctx.Module))
		}
	}
	if returns := node.Field("returns"); returns != nil {
		for i, rnode := range returns.Children {
			name := "_ret" + strconv.Itoa(i)
			if nameNode := rnode.Field("name"); nameNode != nil {
				name = nameNode.Text
			}
			typeRef := e.unknownType(ctx, name)
			if typeNode := rnode.Field("type"); typeNode != nil {
				typeRef = e.buildTypeReference(ctx, typeNode)
			}
			e.Builder.AddReturnParameter(procType, name, typeRef, loc(rnode, ctx.Module))
		}
	}

	instance := e.Builder.ProcedureInstance(procType, loc(node, ctx.Module))
	if body := node.Field("body"); body != nil {
		bodyCtx := &Context{Scope: instance, Module: ctx.Module, Diag: ctx.Diag}
		for _, stmt := range body.Children {
			e.evalStatement(bodyCtx, stmt)
		}
	}
	return instance, true
}

// handleDeclaration implements §4.3's declare_identifier: resolves or
// constructs the declared type reference, builds an initializer for
// constant RHS values, or a synthetic assignment binary operator otherwise
// so the emitted code path is identical to an explicit assignment.
// Constant-only declaration kinds must use `::`; violations raise P029.
func handleDeclaration(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	nameNode := node.Field("name")
	if nameNode == nil {
		errKindMismatch(ctx, node, "declaration with name field")
		return arena.NoElement, false
	}
	declaredWith := node.Text // ":" or "::"
	isConstant := declaredWith == "::"

	valueNode := node.Field("value")
	declKind := "value"
	if valueNode != nil {
		declKind = valueNode.Kind
	}
	if (declKind == "type_decl" || declKind == "module_decl" || declKind == "namespace_decl") && !isConstant {
		ctx.Diag.Errorf(diag.P029, locOf(ctx, node), "constant-required kind declared with :=: %s", nameNode.Text)
		return arena.NoElement, false
	}

	identID := e.Builder.Identifier(nameNode.Text, declaredWith, isConstant, ctx.Scope, loc(node, ctx.Module))
	ip := e.Builder.Arena.Find(identID).Payload.(*arena.IdentifierPayload)

	if typeNode := node.Field("type"); typeNode != nil {
		ip.TypeRef = e.buildTypeReference(ctx, typeNode)
	} else {
		ip.TypeRef = e.unknownType(ctx, nameNode.Text)
	}

	if valueNode == nil {
		return identID, true
	}

	valueID, ok := e.evalStatement(ctx, valueNode)
	if !ok {
		return arena.NoElement, false
	}

	if isConstantExpressionKind(valueNode.Kind) {
		initElem := &arena.CodeElement{Kind: arena.KindInitializer, Payload: &arena.InitializerPayload{Expr: valueID}, Location: loc(node, ctx.Module)}
		e.Builder.Arena.Add(initElem)
		e.Builder.Arena.Adopt(initElem.ID, valueID)
		ip.Initializer = initElem.ID
		e.Builder.Arena.Adopt(identID, initElem.ID)
		if valueNode.Kind == "procedure_expression" {
			e.nameProcedureType(ctx, valueID, nameNode.Text, node)
		}
	} else {
		identRef := e.syntheticIdentifierRef(ctx, nameNode.Text, node)
		assign := e.Builder.Binary(":=", identRef, valueID, loc(node, ctx.Module))
		if bp, ok := e.Builder.Arena.Find(assign).Payload.(*arena.BinaryPayload); ok {
			bp.IsSyntheticAssignment = true
		}
		ip.Initializer = assign
		e.Builder.Arena.Adopt(identID, assign)
	}

	if blockElem := e.Builder.Arena.Find(ctx.Scope); blockElem != nil {
		e.Builder.AppendStatement(ctx.Scope, identID)
	}
	return identID, true
}

func (e *Evaluator) syntheticIdentifierRef(ctx *Context, name string, node *ast.Node) arena.ElementID {
	sym := &arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: name}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(sym)
	ref := &arena.CodeElement{Kind: arena.KindIdentifierReference, Payload: &arena.IdentifierReferencePayload{Symbol: sym.ID, Scope: ctx.Scope}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(ref)
	e.Builder.Arena.Adopt(ref.ID, sym.ID)
	return ref.ID
}

// nameProcedureType attaches a symbol to a `name :: proc(...) {...}`
// declaration's procedure_type, so procLabel (internal/emitter/calls.go) can
// name its entry block and call-graph edges after the declared name instead
// of falling back to "proc_unknown".
func (e *Evaluator) nameProcedureType(ctx *Context, instanceID arena.ElementID, name string, node *ast.Node) {
	instance := e.Builder.Arena.Find(instanceID)
	if instance == nil {
		return
	}
	pip, ok := instance.Payload.(*arena.ProcedureInstancePayload)
	if !ok {
		return
	}
	tpElem := e.Builder.Arena.Find(pip.ProcedureType)
	if tpElem == nil {
		return
	}
	tp, ok := tpElem.Payload.(*arena.ProcedureTypePayload)
	if !ok || tp.TypeHeader.Symbol != arena.NoElement {
		return
	}
	sym := &arena.CodeElement{Kind: arena.KindSymbol, Payload: &arena.SymbolPayload{Name: name}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(sym)
	e.Builder.Arena.Adopt(tpElem.ID, sym.ID)
	tp.TypeHeader.Symbol = sym.ID
}

func (e *Evaluator) buildTypeReference(ctx *Context, typeNode *ast.Node) arena.ElementID {
	tr := &arena.CodeElement{Kind: arena.KindTypeReference, Payload: &arena.TypeReferencePayload{UnresolvedName: typeNode.Text}, Location: loc(typeNode, ctx.Module), ParentScope: ctx.Scope}
	e.Builder.Arena.Add(tr)
	return tr.ID
}

func (e *Evaluator) unknownType(ctx *Context, hint string) arena.ElementID {
	te := &arena.CodeElement{Kind: arena.KindUnknownType, Payload: &arena.UnknownTypePayload{Hint: hint}, Location: arena.Location{Module: ctx.Module}, ParentScope: ctx.Scope}
	e.Builder.Arena.Add(te)
	return te.ID
}

func handleAssignment(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	target := node.Field("target")
	value := node.Field("value")
	if target == nil || value == nil {
		errKindMismatch(ctx, node, "assignment_statement with target/value fields")
		return arena.NoElement, false
	}
	lhs, ok1 := e.evalStatement(ctx, target)
	rhs, ok2 := e.evalStatement(ctx, value)
	if !ok1 || !ok2 {
		return arena.NoElement, false
	}
	assign := e.Builder.Binary("=", lhs, rhs, loc(node, ctx.Module))
	e.Builder.AppendStatement(ctx.Scope, assign)
	return assign, true
}

func handleBlock(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	blockID := e.Builder.Block(ctx.Scope, loc(node, ctx.Module))
	inner := &Context{Scope: blockID, Module: ctx.Module, Diag: ctx.Diag}
	ok := true
	for _, stmt := range node.Children {
		if _, k := e.evalStatement(inner, stmt); !k {
			ok = false
		}
	}
	return blockID, ok
}

// convertPredicate implements §4.3: any expression in boolean position that
// is not already a binary operator is wrapped as `expr == true` so the
// emitter can rely on a comparison producing a zero/non-zero result.
func (e *Evaluator) convertPredicate(ctx *Context, exprID arena.ElementID, node *ast.Node) arena.ElementID {
	elem := e.Builder.Arena.Find(exprID)
	if elem != nil && elem.Kind == arena.KindBinary {
		return exprID
	}
	trueLit := e.Builder.Bool(true)
	return e.Builder.Binary("==", exprID, trueLit, loc(node, ctx.Module))
}

func handleIf(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	condNode := node.Field("condition")
	thenNode := node.Field("consequence")
	if condNode == nil || thenNode == nil {
		errKindMismatch(ctx, node, "if_statement with condition/consequence fields")
		return arena.NoElement, false
	}
	condID, ok := e.evalStatement(ctx, condNode)
	if !ok {
		return arena.NoElement, false
	}
	condID = e.convertPredicate(ctx, condID, condNode)

	thenID, ok := e.evalStatement(ctx, thenNode)
	if !ok {
		return arena.NoElement, false
	}
	elseID := arena.NoElement
	if elseNode := node.Field("alternative"); elseNode != nil {
		elseID, ok = e.evalStatement(ctx, elseNode)
		if !ok {
			return arena.NoElement, false
		}
	}
	ifElem := &arena.CodeElement{Kind: arena.KindIf, Payload: &arena.IfPayload{Predicate: condID, TrueBlock: thenID, FalseBlock: elseID}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(ifElem)
	e.Builder.Arena.Adopt(ifElem.ID, condID)
	e.Builder.Arena.Adopt(ifElem.ID, thenID)
	if elseID != arena.NoElement {
		e.Builder.Arena.Adopt(ifElem.ID, elseID)
	}
	e.Builder.AppendStatement(ctx.Scope, ifElem.ID)
	return ifElem.ID, true
}

func handleWhile(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	condNode := node.Field("condition")
	bodyNode := node.Field("body")
	if condNode == nil || bodyNode == nil {
		errKindMismatch(ctx, node, "while_statement with condition/body fields")
		return arena.NoElement, false
	}
	condID, ok := e.evalStatement(ctx, condNode)
	if !ok {
		return arena.NoElement, false
	}
	condID = e.convertPredicate(ctx, condID, condNode)
	bodyID, ok := e.evalStatement(ctx, bodyNode)
	if !ok {
		return arena.NoElement, false
	}
	whileElem := &arena.CodeElement{Kind: arena.KindWhile, Payload: &arena.WhilePayload{Predicate: condID, Body: bodyID}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(whileElem)
	e.Builder.Arena.Adopt(whileElem.ID, condID)
	e.Builder.Arena.Adopt(whileElem.ID, bodyID)
	e.Builder.AppendStatement(ctx.Scope, whileElem.ID)
	return whileElem.ID, true
}

// handleForIn implements §4.3's for_in-over-range-intrinsic expansion: it
// builds the explicit init/predicate/step/body skeleton, choosing the
// comparison and step operators from the range call's dir/kind arguments.
func handleForIn(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	varNode := node.Field("var")
	rangeNode := node.Field("range")
	bodyNode := node.Field("body")
	if varNode == nil || rangeNode == nil || bodyNode == nil {
		errKindMismatch(ctx, node, "for_in_statement with var/range/body fields")
		return arena.NoElement, false
	}
	startNode := rangeNode.Field("start")
	endNode := rangeNode.Field("end")
	stepNode := rangeNode.Field("step")
	dir := "asc"
	kind := "exclusive"
	if d := rangeNode.Field("dir"); d != nil {
		dir = d.Text
	}
	if k := rangeNode.Field("kind"); k != nil {
		kind = k.Text
	}

	loopScope := e.Builder.Block(ctx.Scope, loc(node, ctx.Module))
	inner := &Context{Scope: loopScope, Module: ctx.Module, Diag: ctx.Diag}

	identID := e.Builder.Identifier(varNode.Text, ":", false, loopScope, loc(varNode, ctx.Module))
	e.Builder.AppendStatement(loopScope, identID)
	startID, ok := e.evalStatement(inner, startNode)
	if !ok {
		return arena.NoElement, false
	}
	ip := e.Builder.Arena.Find(identID).Payload.(*arena.IdentifierPayload)
	ip.TypeRef = e.unknownType(inner, varNode.Text)
	initElem := &arena.CodeElement{Kind: arena.KindInitializer, Payload: &arena.InitializerPayload{Expr: startID}}
	e.Builder.Arena.Add(initElem)
	ip.Initializer = initElem.ID

	endID, ok := e.evalStatement(inner, endNode)
	if !ok {
		return arena.NoElement, false
	}
	loopVarRef := e.syntheticIdentifierRef(inner, varNode.Text, node)

	cmpOp := "<"
	if dir == "desc" {
		cmpOp = ">"
	}
	if kind == "inclusive" {
		cmpOp += "="
	}
	predicate := e.Builder.Binary(cmpOp, loopVarRef, endID, loc(node, ctx.Module))

	stepValue := arena.NoElement
	if stepNode != nil {
		stepValue, ok = e.evalStatement(inner, stepNode)
		if !ok {
			return arena.NoElement, false
		}
	} else {
		stepValue = e.Builder.Int(1, false, loc(node, ctx.Module))
	}
	stepOp := "+"
	if dir == "desc" {
		stepOp = "-"
	}
	stepLoopRef := e.syntheticIdentifierRef(inner, varNode.Text, node)
	stepExpr := e.Builder.Binary(stepOp, stepLoopRef, stepValue, loc(node, ctx.Module))
	stepAssignTarget := e.syntheticIdentifierRef(inner, varNode.Text, node)
	stepAssign := e.Builder.Binary("=", stepAssignTarget, stepExpr, loc(node, ctx.Module))

	bodyID, ok := e.evalStatement(inner, bodyNode)
	if !ok {
		return arena.NoElement, false
	}

	forElem := &arena.CodeElement{
		Kind: arena.KindFor,
		Payload: &arena.ForPayload{
			Init: identID, Predicate: predicate, Step: stepAssign, Body: bodyID,
			RangeDir: dir, RangeKind: kind,
		},
		Location: loc(node, ctx.Module),
	}
	e.Builder.Arena.Add(forElem)
	for _, child := range []arena.ElementID{identID, predicate, stepAssign, bodyID} {
		e.Builder.Arena.Adopt(forElem.ID, child)
	}
	e.Builder.AppendStatement(ctx.Scope, forElem.ID)
	return forElem.ID, true
}

func handleReturn(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	var values []arena.ElementID
	for _, child := range node.Children {
		id, ok := e.evalStatement(ctx, child)
		if !ok {
			return arena.NoElement, false
		}
		values = append(values, id)
	}
	retElem := &arena.CodeElement{Kind: arena.KindReturn, Payload: &arena.ReturnPayload{Values: values}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(retElem)
	for _, v := range values {
		e.Builder.Arena.Adopt(retElem.ID, v)
	}
	e.Builder.AppendStatement(ctx.Scope, retElem.ID)
	return retElem.ID, true
}

// handleBreak/handleContinue only construct the element; they do not check
// for an enclosing loop/switch. The emitter's flow-control stack (§4.8, §9)
// enforces that and raises P081 at lowering time when its frame stack is
// empty.
func handleBreak(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	el := &arena.CodeElement{Kind: arena.KindBreak, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(el)
	e.Builder.AppendStatement(ctx.Scope, el.ID)
	return el.ID, true
}

func handleContinue(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	el := &arena.CodeElement{Kind: arena.KindContinue, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(el)
	e.Builder.AppendStatement(ctx.Scope, el.ID)
	return el.ID, true
}

// handleSwitch builds a switch_statement's switch/case chain (§3.4, §4.8).
// The evaluator only records the switch expression and its ordered cases;
// the equality-test desugar itself happens in the emitter.
func handleSwitch(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	exprNode := node.Field("expr")
	if exprNode == nil {
		errKindMismatch(ctx, node, "switch_statement with expr field")
		return arena.NoElement, false
	}
	exprID, ok := e.evalStatement(ctx, exprNode)
	if !ok {
		return arena.NoElement, false
	}

	var cases []arena.ElementID
	for _, caseNode := range node.Children {
		caseID, ok := e.evalStatement(ctx, caseNode)
		if !ok {
			return arena.NoElement, false
		}
		cases = append(cases, caseID)
	}

	switchElem := &arena.CodeElement{
		Kind:     arena.KindSwitch,
		Payload:  &arena.SwitchPayload{Expr: exprID, Cases: cases},
		Location: loc(node, ctx.Module),
	}
	e.Builder.Arena.Add(switchElem)
	e.Builder.Arena.Adopt(switchElem.ID, exprID)
	for _, c := range cases {
		e.Builder.Arena.Adopt(switchElem.ID, c)
	}
	e.Builder.AppendStatement(ctx.Scope, switchElem.ID)
	return switchElem.ID, true
}

// handleCase builds one case_clause. A missing `match` field means the
// default arm: CasePayload.Match stays NoElement and the emitter enters its
// body unconditionally. Fallthrough is recorded both statically here (the
// body's last statement being a fallthrough_statement) and dynamically by
// the emitter's flow-control frame when the fallthrough element itself is
// reached during emission (§4.8).
func handleCase(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	matchID := arena.NoElement
	if matchNode := node.Field("match"); matchNode != nil {
		var ok bool
		matchID, ok = e.evalStatement(ctx, matchNode)
		if !ok {
			return arena.NoElement, false
		}
	}
	bodyNode := node.Field("body")
	if bodyNode == nil {
		errKindMismatch(ctx, node, "case_clause with body field")
		return arena.NoElement, false
	}
	bodyID, ok := e.evalStatement(ctx, bodyNode)
	if !ok {
		return arena.NoElement, false
	}

	caseElem := &arena.CodeElement{
		Kind:     arena.KindCase,
		Payload:  &arena.CasePayload{Match: matchID, Body: bodyID, Fallthrough: endsInFallthrough(bodyNode)},
		Location: loc(node, ctx.Module),
	}
	e.Builder.Arena.Add(caseElem)
	if matchID != arena.NoElement {
		e.Builder.Arena.Adopt(caseElem.ID, matchID)
	}
	e.Builder.Arena.Adopt(caseElem.ID, bodyID)
	return caseElem.ID, true
}

// endsInFallthrough reports whether bodyNode's last statement is a
// fallthrough_statement, the hint CasePayload.Fallthrough records for
// inspection; the emitter does not rely on it, it flips its own
// flow-control frame's flag when it reaches the fallthrough element itself.
func endsInFallthrough(bodyNode *ast.Node) bool {
	if len(bodyNode.Children) == 0 {
		return false
	}
	return bodyNode.Children[len(bodyNode.Children)-1].Kind == "fallthrough_statement"
}

// handleFallthrough mirrors handleBreak/handleContinue: just a bare marker
// element appended in statement position. The emitter raises P081 if it is
// reached with no enclosing switch frame.
func handleFallthrough(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	el := &arena.CodeElement{Kind: arena.KindFallthrough, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(el)
	e.Builder.AppendStatement(ctx.Scope, el.ID)
	return el.ID, true
}

// handleDefer implements §3.2/§9's defer stack: the deferred expression is
// pushed onto the enclosing block's DeferStack rather than appended to its
// ordinary statement list, since it runs at block-exit in reverse-push
// order (§5), not in its textual position.
func handleDefer(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	exprNode := node.Field("expr")
	if exprNode == nil {
		errKindMismatch(ctx, node, "defer_statement with expr field")
		return arena.NoElement, false
	}
	exprID, ok := e.evalStatement(ctx, exprNode)
	if !ok {
		return arena.NoElement, false
	}

	deferElem := &arena.CodeElement{
		Kind:     arena.KindDefer,
		Payload:  &arena.DeferPayload{Expr: exprID},
		Location: loc(node, ctx.Module),
	}
	e.Builder.Arena.Add(deferElem)
	e.Builder.Arena.Adopt(deferElem.ID, exprID)
	e.Builder.Arena.Adopt(ctx.Scope, deferElem.ID)

	if bp := scope.BlockPayload(e.Builder.Arena.Find(ctx.Scope)); bp != nil {
		bp.PushDefer(exprID)
	}
	return deferElem.ID, true
}

func handleCall(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	calleeNode := node.Field("callee")
	argsNode := node.Field("arguments")
	if calleeNode == nil {
		errKindMismatch(ctx, node, "call_expression with callee field")
		return arena.NoElement, false
	}
	callee, ok := e.evalStatement(ctx, calleeNode)
	if !ok {
		return arena.NoElement, false
	}
	var argsID arena.ElementID = arena.NoElement
	if argsNode != nil {
		argsID, ok = e.evalStatement(ctx, argsNode)
		if !ok {
			return arena.NoElement, false
		}
	} else {
		empty := &arena.CodeElement{Kind: arena.KindArgumentList, Payload: &arena.ArgumentListPayload{}}
		e.Builder.Arena.Add(empty)
		argsID = empty.ID
	}
	callElem := &arena.CodeElement{Kind: arena.KindProcedureCall, Payload: &arena.ProcedureCallPayload{Callee: callee, Arguments: argsID}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(callElem)
	e.Builder.Arena.Adopt(callElem.ID, callee)
	e.Builder.Arena.Adopt(callElem.ID, argsID)
	return callElem.ID, true
}

func handleArgumentList(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	var args []arena.ElementID
	for _, child := range node.Children {
		id, ok := e.evalStatement(ctx, child)
		if !ok {
			return arena.NoElement, false
		}
		args = append(args, id)
	}
	listElem := &arena.CodeElement{Kind: arena.KindArgumentList, Payload: &arena.ArgumentListPayload{Arguments: args}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(listElem)
	for _, a := range args {
		e.Builder.Arena.Adopt(listElem.ID, a)
	}
	return listElem.ID, true
}

func handleMemberAccess(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	lhsNode := node.Field("object")
	if lhsNode == nil {
		errKindMismatch(ctx, node, "member_access with object field")
		return arena.NoElement, false
	}
	lhs, ok := e.evalStatement(ctx, lhsNode)
	if !ok {
		return arena.NoElement, false
	}
	maElem := &arena.CodeElement{Kind: arena.KindMemberAccess, Payload: &arena.MemberAccessPayload{LHS: lhs, Name: node.Text}, Location: loc(node, ctx.Module)}
	e.Builder.Arena.Add(maElem)
	e.Builder.Arena.Adopt(maElem.ID, lhs)
	return maElem.ID, true
}

func handleAttribute(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	valueNode := node.Field("value")
	value := ""
	if valueNode != nil {
		value = valueNode.Text
	}
	id := e.Builder.Attribute(node.Text, value, loc(node, ctx.Module))
	ctx.pendingAttributes = append(ctx.pendingAttributes, id)
	return arena.NoElement, true
}

func handleComment(e *Evaluator, ctx *Context, node *ast.Node) (arena.ElementID, bool) {
	id := e.Builder.Comment(node.Text, loc(node, ctx.Module))
	ctx.pendingComments = append(ctx.pendingComments, id)
	return arena.NoElement, true
}
