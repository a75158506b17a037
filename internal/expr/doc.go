// Package expr compiles and evaluates the small boolean expressions used by
// breakpoint conditions and expression nodes.
//
// Expressions use HCL expression syntax evaluated with cty values, e.g.
//
//	user.username == "admin" && args.count > 3
//
// Editors written for JavaScript habitually produce `===`, `!==` and
// single-quoted strings; Compile rewrites those before parsing, so
// `user.username === 'admin'` is accepted as well. Evaluation is pure: an
// expression only sees the variables handed to Match/Value and a fixed set
// of side-effect-free functions.
package expr
