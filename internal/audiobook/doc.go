// Package audiobook turns ffprobe metadata into the fixed book record used by
// the converter and plans the per-chapter output files.
//
// FromProbe extracts the book-level tags and the ordered chapter list, and
// BuildPlan assigns track numbers starting at 1 along with sanitized output
// paths of the form <base>/<album artist>/<title>/<NN - chapter>.<ext>.
package audiobook
