// Package report aggregates test outcomes into a single frozen RunReport
// and renders it three ways: a JSON artifact for machines, a narrative text
// file grouping failures by their likely origin, and a console summary.
package report
