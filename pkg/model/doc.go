// Package model defines the domain types shared across the gateway:
// panel status records, partitions, zones, fence state, the panel model
// table, and connection descriptors.
//
// Types here are plain values with no protocol knowledge. The isecnet
// package produces them from wire bytes; the service and persistence
// layers consume and store them as JSON.
package model
