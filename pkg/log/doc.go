// Package log wraps zerolog to give every hexad component a structured,
// component-tagged logger. Init configures the global logger once at process
// startup; WithComponent/WithNodeID/WithStoreID derive child loggers that
// carry their field into every subsequent entry.
package log
