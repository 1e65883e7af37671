// Package queue sequences completed speech chunks onto a single player.
// Chunks play strictly in the order their slots were reserved, so payloads
// fetched concurrently can arrive in any order without reordering speech.
package queue
