// Package textutil turns audiobook metadata into names that are safe to use
// as file and directory components.
package textutil
