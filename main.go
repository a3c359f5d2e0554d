// Package main runs the Arcyd daemon: it watches review branches in the
// configured git repositories, keeps a review open for each of them and
// lands the accepted ones.
package main

import "github.com/arcyd/arcyd/internal"

func main() {
	internal.Run()
}
