// Package registry owns every loaded translator and decides which one
// renders each variable.
//
// Translators are kept in a single total order: built-ins in declaration
// order, then user instruction decoders, then sandboxed plugins, then
// scripts, each group in search path order and lexical file order within a
// directory. The first translator to claim a name keeps it; later ones are
// logged and skipped.
//
// Default selection for a variable (or a field of a composite) is:
//
//  1. the persisted binding, if it names a registered translator that still
//     validates;
//  2. otherwise the first preferred translator in registry order;
//  3. otherwise the configured default translator, if it applies;
//  4. otherwise the first applicable translator.
//
// Validate verdicts are cached per translator and variable node. Every
// write (Register, Discover, Reload, ReloadTranslator, Restore, Rebind)
// drops them and validates all translators against the trace's variables
// again, so batches and render queries never call into a plugin or script
// just to pick a translator. Nodes outside that scope, such as decomposed
// parts, are validated on first use and cached the same way.
//
// Reads and writes are separated by a read-mostly lock. A translation batch
// holds a View for its whole lifetime, so discovery, reload and binding
// changes wait until no batch is reading.
package registry
