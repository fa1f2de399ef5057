// Package inbox watches the intake directory for new documents and hands
// stable files to a handler. Filesystem events come from fsnotify; a
// periodic rescan catches files that arrived while the watcher was down.
package inbox
