// Package model holds the in-memory server configuration edited by
// commands.
//
// # Configuration
//
// Configuration owns three ordered sequences: web modules, MIME mappings and
// server ports. Web modules and MIME mappings are addressed by index; the
// order is insertion order and inserting or removing shifts every later
// index. Each element also carries a Key assigned on insertion so that
// commands can tell whether the element they captured is still where they
// left it.
//
//	cfg := model.NewConfiguration()
//	cfg.AddWebModule(-1, model.WebModule{Path: "/shop", DocumentBase: "shop"})
//	cfg.SetServerPort("http", 8081)
//
// # ServerWrapper
//
// ServerWrapper holds the per-server scalar flags (debug, secure, deploy
// directory and so on). It shares nothing with Configuration.
//
// # Ownership
//
// Neither aggregate locks. Each is owned by one editing session; callers
// that share one across goroutines must add their own synchronization.
package model
