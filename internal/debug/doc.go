// Package debug provides assertions that are compiled in only with the
// "assert" build tag, plus the logger shared by packages that were not
// handed one.
package debug
