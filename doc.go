// Package loader supervises the single foreground application of a device's
// application environment.
//
// The core functionality centers around the Supervisor type, which owns the
// foreground slot and processes every request on one goroutine:
//
//	sup, err := loader.New(registry,
//	    loader.WithImageLoader(images),
//	    loader.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go sup.Run(ctx)
//
//	res, err := sup.Start(ctx, "Clock", "")
//	if err != nil {
//	    log.Fatal(err) // supervisor stopped or ctx cancelled
//	}
//	if err := res.Err(); err != nil {
//	    fmt.Println("start failed:", err)
//	}
//
// # Name Resolution
//
// Start resolves a name in a fixed order: the legacy rewrite table, the
// internal, system and debug registries (by name or stable id), the
// application browser pseudo-name, the external alias tables and finally the
// name itself as a path to a dynamically loaded image. Images are sequenced
// through an ImageLoader: preload, map, confirmation of a tolerated API
// mismatch, runnable check, thread creation.
//
// # Concurrency
//
// Requests enter a channel with capacity one. Synchronous calls block on a
// one-shot reply channel until the Supervisor has applied them, so the slot
// and overlay state have exactly one writer. A running application never
// touches Supervisor state: its termination is posted back as a message.
//
// # Menu Catalog
//
// MenuCatalogBuilder reads the persisted "MenuAppList Version <N>" file,
// regenerates it atomically when missing or unparsable, migrates version 0
// labels and resolves each line against the registries or image metadata.
package loader
