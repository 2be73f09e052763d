// Package watcher keeps the index current while Lua sources are edited.
//
// An fsnotify watcher observes every non-excluded directory under a root.
// Events are debounced per path, so an editor's burst of writes produces a
// single re-index once the file settles. Writes and creates re-index the
// file; removes and renames drop it from the index. Directories created
// while watching are added to the watch set and their files indexed.
package watcher
