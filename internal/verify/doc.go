// Package verify reads back chapter files after a conversion and checks
// their tags and duration.
//
// Check compares files against the tracks a conversion planned. CheckDirectory
// is used for an existing book folder with no plan available; it expects
// files sorted by name to carry consecutive track numbers from 1.
package verify
