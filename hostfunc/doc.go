// Package hostfunc provides the capabilities a script can be granted.
//
// Scripts start with no filesystem, network, or process access. A capability
// is a Go function registered under a module name in a [Registry]; the engine
// exposes each module to scripts through load():
//
//	load("http", "http")
//	resp = http.get(url = "https://api.example.com/items")
//	if resp["ok"]:
//	    http.request(method = "POST", url = resp["url"], json = {"seen": True})
//
// # Built-in Capabilities
//
// HTTP: requests limited to allow-listed hosts, via [HTTP]. The same
// outbound policy, [Client], also serves remote script retrieval.
//
//	h := hostfunc.NewHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.example.com"},
//	})
//	h.Register(registry)
//
// Key-Value Store: a scratch store that lives for one execution, via [KV].
//
//	hostfunc.NewKV(hostfunc.DefaultKVConfig()).Register(registry)
//
// All built-in capabilities carry size limits.
package hostfunc
