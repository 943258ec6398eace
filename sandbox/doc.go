// Package sandbox runs third-party translators compiled to WebAssembly.
//
// Each plugin file is compiled once and instantiated into a small pool of
// isolated module instances. Plugins may import only the host module
// "surfer", which exposes two functions:
//
//	current_dir(buf: u32, cap: u32) -> s32
//	read_file(path: u32, path_len: u32, buf: u32, cap: u32) -> s64
//
// Both write at most cap bytes into guest memory and return the full length
// of the data, or -1 on failure. Any other import fails the load.
//
// Arguments cross the boundary as canonical CBOR written into a buffer the
// guest hands out through its alloc export. Results come back as a packed
// u64 (ptr<<32 | len) pointing at a CBOR document in guest memory.
//
// Every call runs under a deadline. A trap fails only the value being
// translated and leaves the instance in the pool. An instance closed by the
// deadline is replaced; after too many replacements, or when the guest hands
// back a pointer outside its memory, the plugin is marked unusable.
package sandbox
