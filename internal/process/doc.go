// Package process manages the process groups of helper programs (typst,
// Chrome) so cancellation and shutdown leave no orphans behind.
package process
