// Package demucs wraps the Demucs source separator. Only the two-stem
// (vocals versus everything else) mode is used; the background bed is
// derived by subtraction in internal/audiomix.
package demucs
