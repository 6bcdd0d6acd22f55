// Package preflight provides readiness checks for the external tools and
// filesystem paths a conversion depends on.
//
// These checks run in two contexts:
//   - The converter calls ForConversion before decoding so a full disk or
//     unwritable work directory fails fast instead of after a long ffmpeg run.
//   - The CLI "aaxsplit status" command uses RunAll to display readiness.
package preflight
