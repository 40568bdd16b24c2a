// Package llm defines the chat and function-calling contract the agent loop
// speaks. Provider adapters live in subpackages.
package llm
