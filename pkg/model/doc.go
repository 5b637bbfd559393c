// Package model holds the records harvested from a Sonar server.
//
// Records are compared by natural key (project key, rule key, issue key, file
// path) through SameAs, never by full field equality. The only mutation after
// construction is Project.SetLinks, which recomputes the GitHub flag.
package model
