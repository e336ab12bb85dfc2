// Package dict implements the FIX data dictionary validator: loading a
// per-version dictionary from XML and validating parsed messages against it
// (spec.md §4.3).
//
// A Dictionary knows, for each MsgType, which tags are required, which are
// merely allowed, the declared field order, enumerated values, basic data
// types, and repeating group structure. FIXT.1.1 sessions compose a
// transport dictionary (session-layer messages) with one or more
// application dictionaries keyed by DefaultApplVerID (spec.md §4.3).
package dict
