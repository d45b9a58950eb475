// Command ackscan audits publication acknowledgments in a corpus.
package main

import "github.com/pubtracker/ackscan/internal/cli"

func main() {
	cli.Execute()
}
