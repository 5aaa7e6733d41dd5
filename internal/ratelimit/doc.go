// Package ratelimit meters outbound LLM traffic. A sliding-window token
// bucket enforces a tokens-per-window budget, a weighted semaphore bounds
// in-flight calls, and a per-call ceiling rejects requests no window could
// ever admit. The Coordinator is the single admission path callers use.
package ratelimit
