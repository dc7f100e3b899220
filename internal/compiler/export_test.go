package compiler

// Exported for testing.
var GoMod = goMod
