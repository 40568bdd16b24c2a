// Package agent runs the tool-calling loop that lets a language model use the
// actions published by an agentkit.Kit.
package agent
