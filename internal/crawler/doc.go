// Package crawler holds the domain types shared by the score crawler: songs
// and their chart records, the player status, the snapshot handed to
// exporters, the site URL layout, and the collaborator interfaces the
// orchestrator depends on.
package crawler
