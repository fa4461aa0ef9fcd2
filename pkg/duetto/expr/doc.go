/*
Package expr compiles and evaluates boolean filter expressions over event
fields.

# Overview

Expressions are compiled once, at configuration time, and evaluated for
every event. Compile reports syntax errors and bad regular expressions up
front so a misconfigured filter fails at startup rather than per event.

	prog, err := expr.Compile(`priority_level >= 2 and ticker != ""`)
	if err != nil {
	    return err
	}
	if prog.Eval(evt.Fields()) {
	    // keep
	}

# Syntax

Logical operators:

	a and b     a && b
	a or b      a || b
	not a       !a
	( ... )

Comparisons:

	==  !=          equality; numeric when both sides are numbers
	<  <=  >  >=    numeric when both sides parse as numbers, else lexical
	x contains y    substring, or membership when x is a list
	x matches "re"  regular expression match (the pattern must be a literal)
	x in [a, b, c]  membership in a literal list

Operands are quoted strings ('single' or "double"), numbers, true, false,
null, or identifiers. Identifiers are looked up in the variables map and
may contain dots ("payload.form_type"). An identifier with no variable
evaluates as its own name, so type == SEC_8K compares against "SEC_8K".

A bare operand is tested for truthiness: nil, false, "", and zero are
false; everything else is true.

# Thread Safety

A compiled Program is immutable and safe for concurrent use.
*/
package expr
