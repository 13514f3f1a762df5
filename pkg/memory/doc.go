// Package memory implements the central knowledge store: access controlled
// memories with tags, entities and per-user grants, semantic search over an
// embedding index, Markdown rendering, and JSON Lines / CSV import and
// export.
package memory
