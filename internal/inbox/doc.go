// Package inbox watches a drop directory and submits every supported media
// file that lands in it as a dubbing job in the default target language.
package inbox
