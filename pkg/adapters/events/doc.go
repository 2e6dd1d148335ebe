// Package events holds the ports.EventBus adapters.
//
// memory delivers in process and drops events for slow subscribers. redis
// appends to one stream per topic and every subscriber reads the whole stream.
package events
