// Package scriptexec is a remote script execution service.
//
// # Overview
//
// Clients submit a script inline, by URL, or as an uploaded file, optionally
// with a list of parameters. The script is parsed and screened for a fixed
// set of forbidden calls and loads, then run in a fresh interpreter
// environment. Plain scripts return what they print; with parameters the
// script's top-level custom function is called and its return value is the
// result.
//
// Scripts run with zero default capabilities. Network access and a
// key-value store must be enabled explicitly.
//
// # Basic Usage
//
//	d := dispatch.New(source.New(), validate.New(), engine.New(nil))
//
//	// Plain mode
//	out, _ := d.Execute(ctx, dispatch.Submission{Script: `print("hello")`})
//	fmt.Print(out.Result) // hello
//
//	// Parameterized mode
//	out, _ = d.Execute(ctx, dispatch.Submission{
//	    Script:     "def custom(x): return x * 2",
//	    Parameters: []any{21},
//	})
//	fmt.Println(out.Result) // 42
//
// # Serving
//
//	srv := server.New(d)
//	http.ListenAndServe(":8080", srv.Handler())
//
// See the [dispatch], [source], [validate], [engine], [wasm], [hostfunc], and
// [server] packages for detailed API documentation.
package scriptexec
