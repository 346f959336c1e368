// Package site defines the domain types and collaborator interfaces shared by
// the bake pipeline: posts and pages read from the content store, formatted
// content, chart exports, and the bake job records used by server mode.
package site
