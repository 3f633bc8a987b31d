// Package feed keeps statesync collections in step with a stream of change
// messages.
//
// A change message inserts, updates or deletes one record, addressed by an
// entity type and a key. Applying it to the collection registered for that
// type goes through the ordinary model and collection operations, so every
// session synced on the collection sees "add", "change:<attr>", "change",
// "remove" and "reset" exactly as if the mutation had been made locally.
//
//	todos := statesync.NewCollection()
//	m := feed.NewMaterializer()
//	feed.Register(m, "todo", todos)
//
//	statesync.SyncEntityEvents(view, todos, statesync.Bindings{
//	    statesync.Bind("reset change", "renderList"),
//	})
//
//	msg, _ := feed.Insert("todo", "1", map[string]any{"title": "write docs"})
//	m.ApplyChangeMessage(msg)
//
// # Control Messages
//
// Control messages manage stream lifecycle:
//
//	feed.SnapshotStart("offset")  // Begin snapshot
//	feed.SnapshotEnd("offset")    // End snapshot
//	feed.Reset("offset")          // Empty every collection
//
// # Wire format
//
// Messages are JSON objects. A stream is newline-delimited JSON, replayed
// with Materializer.Replay:
//
//	{"type":"todo","key":"1","value":{"title":"write docs"},"headers":{"operation":"insert"}}
//	{"headers":{"control":"reset"}}
package feed
