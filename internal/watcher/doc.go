// Package watcher delivers filesystem events for a set of directory trees and
// individual files.
//
// Directory trees are watched recursively and pick up subdirectories created
// after the watch begins. Single files are watched through their parent
// directory, and events for siblings are discarded. Events are best-effort:
// callers should treat them as hints to refresh rather than an exact log.
package watcher
