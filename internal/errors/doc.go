// Package errors provides structured application errors with stable codes.
//
// Every error surfaced to operators or the CLI carries a code (e.g. "E102"),
// a category, and optionally a detail and a fix suggestion. Codes are
// registered centrally in registry.go so log lines and documentation can
// refer to them consistently.
//
//	return errors.New("E201").Wrap(err)
//	return errors.Newf(errors.CategoryValidation, "slug %q already in use", slug)
package errors
