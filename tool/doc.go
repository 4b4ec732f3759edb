// Package tool contains Retrofit's built-in analysis and migration tools
// for legacy Node.js codebases.
//
// Each tool implements core.Tool plus a Manifest describing its inputs
// and outputs. Tools are pattern-level analyzers: they match known
// legacy constructs (deprecated APIs, callback signatures, CommonJS
// module syntax, ffi-napi bindings) with regular expressions and emit
// structured findings, migration rewrites, and reports. They do not
// parse JavaScript into an AST.
package tool
