// Package errors provides structured, coded errors for Weft.
//
// Every error carries a short code (for example "W101") that maps to a
// registered template holding the category, a one-line message, a longer
// detail and a documentation link. Codes are grouped by category:
//   - W1xx lifecycle: invalid controller state machine usage
//   - W2xx config: configuration file problems
//   - W3xx cli: command line usage problems
//
// # Usage
//
//	err := errors.New("W101").
//	    WithDetail("controller card#3 is activated").
//	    WithSuggestion("Deactivate the controller before activating it again")
//
//	fmt.Println(err.Format())
//
// Lifecycle errors are used as panic values: they signal a programming
// error in how a controller is driven, never a data problem.
package errors
