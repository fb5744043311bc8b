// Package service hosts the engine facade: the single entry point that
// validates requests, journals them, runs them through the matching
// core and makes the outcome durable before answering.
//
// Durability contract: once Submit or Cancel returns nil, the operation
// survives a crash. The journal record is written before the book is
// touched and the post-match snapshot commits in one synced batch, so a
// restart replays at most the operations whose callers never got an
// answer.
package service
