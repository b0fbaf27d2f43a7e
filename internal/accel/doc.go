// Package accel converts free-form shortcut text into a canonical,
// order-independent accelerator representation and back into a display label.
//
// The codec is permissive: any non-empty input is accepted. Modifier tokens
// are deduplicated and ordered canonically, special key names are mapped
// through fixed tables, and unmapped single characters are upper-cased and
// passed through. The codec never judges whether the result is a sensible
// key combination.
package accel
