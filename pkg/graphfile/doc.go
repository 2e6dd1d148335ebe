// Package graphfile decodes workflow graphs from files and request bodies.
//
// Two formats are supported. JSON documents are either a graph object
// ({"nodes": [...], "edges": [...]}) or a bare array of nodes with no edges.
// Unknown fields such as editor positions are ignored. HCL documents declare
// one block per node and per edge:
//
//	node "start" {
//	  type = "trigger"
//	}
//
//	node "greet" {
//	  type = "log"
//	  data = {
//	    message = "hello"
//	  }
//	}
//
//	edge "e1" {
//	  source = "start"
//	  target = "greet"
//	}
package graphfile
