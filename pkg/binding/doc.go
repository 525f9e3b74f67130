// Package binding turns expression evaluation into render target writes.
//
// Every binding embeds a Connectable, whose ObserverRecord remembers which
// observable properties the last tracked evaluation read. Before a tracked
// evaluation the record's version is bumped; each read stamps its entry
// with the new version; afterwards entries still carrying an old version
// are unsubscribed. Diffing therefore costs O(dependencies), and the
// record is swept even when evaluation fails.
//
// Bindings:
//
//   - InterpolationBinding writes a ${...} template to a target property.
//     Each segment is a ContentBinding.
//   - TextBinding renders one expression into a text node, inserting the
//     value itself when it is a node.
//   - PropertyBinding writes one expression to a target property and, in
//     from-view modes, assigns target changes back to the source.
//
// The first write after Bind is always immediate. Later writes to
// layout-affecting targets are queued as preempting tasks on the
// scheduler.TaskQueue; each queued write cancels the binding's previous
// one, so a binding never has more than one pending write and only the
// latest value reaches the target.
//
// Bindings are driven from a single goroutine, the one that flushes the
// task queue.
package binding
