// Package cache keeps synthesized speech payloads so repeated text does not
// go back to the network. It has an in-memory LRU tier and a
// zstd-compressed disk tier.
package cache
