// Package hashing provides the string hash functions used to place nodes
// and request keys on the ring. Every function maps a string onto the full
// uint64 domain and must return the same value for the same input on any
// platform.
package hashing
