package main

import (
	"testing"
)

func TestQueryTokens(t *testing.T) {
	e := newExecutor(t, true)

	headerRE := `^TOKEN\s+OWNER\s+MIN PRICE\s+APPROVAL\s+GATE\s+CREATOR$`
	listingRE := `^nft\.mintgate:0\s+alice\s+1000\s+1\s+G1\s+carol$`

	t.Run("for sale", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "tokens", "-r", e.endpoint())
		e.checkNextLine(t, headerRE)
		e.checkNextLine(t, listingRE)
		e.checkEOF(t)
	})
	t.Run("by owner", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "tokens", "--owner", "alice", "-r", e.endpoint())
		e.checkNextLine(t, headerRE)
		e.checkNextLine(t, listingRE)
		e.checkEOF(t)
	})
	t.Run("by gate", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "tokens", "--gate", "G1", "-r", e.endpoint())
		e.checkNextLine(t, headerRE)
		e.checkNextLine(t, listingRE)
		e.checkEOF(t)
	})
	t.Run("by creator", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "tokens", "--creator", "carol", "-r", e.endpoint())
		e.checkNextLine(t, headerRE)
		e.checkNextLine(t, listingRE)
		e.checkEOF(t)
	})
	t.Run("empty dimension", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "tokens", "--owner", "bob", "-r", e.endpoint())
		e.checkNextLine(t, headerRE)
		e.checkEOF(t)
	})
	t.Run("conflicting dimensions", func(t *testing.T) {
		e.RunWithError(t, "mintgate", "query", "tokens", "--owner", "alice", "--gate", "G1", "-r", e.endpoint())
	})
	t.Run("no node", func(t *testing.T) {
		e.RunWithError(t, "mintgate", "query", "tokens", "-r", "http://127.0.0.1:1")
	})
}

func TestQueryBalance(t *testing.T) {
	e := newExecutor(t, true)

	t.Run("good", func(t *testing.T) {
		e.Run(t, "mintgate", "query", "balance", "-r", e.endpoint(), "alice")
		e.checkNextLine(t, "^1000000$")
		e.checkEOF(t)
	})
	t.Run("missing argument", func(t *testing.T) {
		e.RunWithError(t, "mintgate", "query", "balance", "-r", e.endpoint())
	})
	t.Run("invalid account", func(t *testing.T) {
		e.RunWithError(t, "mintgate", "query", "balance", "-r", e.endpoint(), "")
	})
	t.Run("unknown account", func(t *testing.T) {
		e.RunWithError(t, "mintgate", "query", "balance", "-r", e.endpoint(), "dave")
	})
}
