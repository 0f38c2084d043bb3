// Package server runs the local preview of a built site.
//
// The server serves the output directory with extension-less URLs, watches
// the docs directory for changes, rebuilds the changed notes and tells open
// browser tabs to reload over a websocket.
//
//	srv, err := server.New(server.Config{
//	    Addr:     "127.0.0.1:3000",
//	    Root:     "build",
//	    WatchDir: "docs",
//	}, builder, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
