// Package workflow defines the persisted workflow JSON shape: the graph of
// nodes and edges a canvas front-end produces and the server's execution
// core consumes. Types here are deliberately permissive about unknown
// fields so that round-tripping a document saved by a newer front-end never
// silently drops data.
package workflow
