// Package snapshot stores rendered output.
//
// A Store keeps snapshots under slash-separated keys. FileStore writes to a
// local directory, S3Store to an S3 bucket:
//
//	store, err := snapshot.NewFileStore("snapshots")
//	if err != nil {
//	    return err
//	}
//	key := snapshot.NewKey("card", ".html")
//	if err := store.Put(ctx, key, "text/html", []byte(html)); err != nil {
//	    return err
//	}
package snapshot
