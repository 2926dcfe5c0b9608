// Package parse provides tolerant JSON parsing for values crossing handle
// boundaries and for structured output produced by LLM nodes. Malformed
// JSON is repaired (via jsonrepair) before a second unmarshal attempt.
package parse
